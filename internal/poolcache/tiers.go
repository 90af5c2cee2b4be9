// Package poolcache persists built hero pools across two storage tiers: a
// fast session tier and a durable tier that survives restarts. Reads prefer
// the session tier; writes go to both best-effort.
package poolcache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tier is a minimal key-value slice of a storage backend. A missing key is
// (nil, false, nil); corrupt payloads are the caller's concern.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// ──────────────────── Memory tier ────────────────────

// MemoryTier is the default session tier: per-process, lost on restart.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string][]byte)}
}

func (t *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *MemoryTier) Set(_ context.Context, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	t.entries[key] = stored
	return nil
}

func (t *MemoryTier) Remove(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

// ──────────────────── SQLite tier ────────────────────

// SQLiteTier is the durable tier, backed by the hero_pools table.
type SQLiteTier struct {
	db *sql.DB
}

func NewSQLiteTier(db *sql.DB) *SQLiteTier {
	return &SQLiteTier{db: db}
}

func (t *SQLiteTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	err := t.db.QueryRowContext(ctx, `SELECT payload FROM hero_pools WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(payload), true, nil
}

func (t *SQLiteTier) Set(ctx context.Context, key string, value []byte) error {
	_, err := t.db.ExecContext(ctx, `INSERT INTO hero_pools (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(value), time.Now())
	return err
}

func (t *SQLiteTier) Remove(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM hero_pools WHERE key = ?`, key)
	return err
}

// ──────────────────── Redis tier ────────────────────

// RedisTier is an alternative session tier for deployments already running
// Redis for the job queue. Entries carry a coarse server-side expiry as a
// backstop; the store's own TTL/grace rules still apply at read time.
type RedisTier struct {
	client *redis.Client
	expiry time.Duration
}

func NewRedisTier(client *redis.Client, expiry time.Duration) *RedisTier {
	return &RedisTier{client: client, expiry: expiry}
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := t.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte) error {
	return t.client.Set(ctx, key, value, t.expiry).Err()
}

func (t *RedisTier) Remove(ctx context.Context, key string) error {
	return t.client.Del(ctx, key).Err()
}
