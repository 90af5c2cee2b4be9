package poolcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marquee/internal/models"
)

const (
	SourceSession = "session"
	SourceDurable = "durable"
)

// Entry wraps a stored pool with read-time provenance. IsExpired and
// MatchesPolicy are computed against the read's now/hash, never stored.
type Entry struct {
	Pool          models.Pool
	Source        string
	IsExpired     bool
	MatchesPolicy bool
}

// ReadOptions controls one GetStoredPool call.
type ReadOptions struct {
	Now          time.Time
	PolicyHash   string
	AllowExpired bool
	Grace        time.Duration
}

// Store coordinates the session and durable tiers.
type Store struct {
	session Tier
	durable Tier
}

func NewStore(session, durable Tier) *Store {
	return &Store{session: session, durable: durable}
}

func durableKey(kind models.MediaKind) string { return "heroPool:" + string(kind) }
func sessionKey(kind models.MediaKind) string { return "heroPool:" + string(kind) + ":session" }

// StorePool writes the pool to both tiers. A failed write on one tier is
// logged and the other still counts; only a double failure is an error.
func (s *Store) StorePool(ctx context.Context, pool models.Pool) error {
	payload, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}

	var sessionErr, durableErr error
	if sessionErr = s.session.Set(ctx, sessionKey(pool.Kind), payload); sessionErr != nil {
		log.Printf("[poolcache] session write failed for %s: %v", pool.Kind, sessionErr)
	}
	if durableErr = s.durable.Set(ctx, durableKey(pool.Kind), payload); durableErr != nil {
		log.Printf("[poolcache] durable write failed for %s: %v", pool.Kind, durableErr)
	}
	if sessionErr != nil && durableErr != nil {
		return fmt.Errorf("store pool %s: both tiers failed", pool.Kind)
	}
	return nil
}

// GetStoredPool reads the cached pool for a kind, session tier first. A
// policy-hash mismatch is an unconditional miss. An expired entry is
// returned only when AllowExpired is set and the entry is still inside the
// grace window. Corrupt payloads are treated as absent.
func (s *Store) GetStoredPool(ctx context.Context, kind models.MediaKind, opts ReadOptions) *Entry {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if pool, ok := s.readTier(ctx, s.session, sessionKey(kind)); ok {
		if entry := s.evaluate(pool, SourceSession, opts); entry != nil {
			return entry
		}
		// Session entry invalid; the durable copy was written under the
		// same policy/TTL, so there is nothing fresher below. Still fall
		// through: a durable entry can exist when the session tier was
		// repopulated after a restart with stale data removed.
	}
	if pool, ok := s.readTier(ctx, s.durable, durableKey(kind)); ok {
		if entry := s.evaluate(pool, SourceDurable, opts); entry != nil {
			return entry
		}
	}
	return nil
}

// GetHistory returns the rotation history of the most recently stored pool
// for a kind, regardless of TTL or policy hash: anti-repeat scoring wants
// what was actually shown, not what is still servable.
func (s *Store) GetHistory(ctx context.Context, kind models.MediaKind) []models.HistoryEntry {
	if pool, ok := s.readTier(ctx, s.session, sessionKey(kind)); ok {
		return pool.History
	}
	if pool, ok := s.readTier(ctx, s.durable, durableKey(kind)); ok {
		return pool.History
	}
	return nil
}

// InvalidatePool removes the entry from both tiers.
func (s *Store) InvalidatePool(ctx context.Context, kind models.MediaKind) error {
	var firstErr error
	if err := s.session.Remove(ctx, sessionKey(kind)); err != nil {
		firstErr = err
	}
	if err := s.durable.Remove(ctx, durableKey(kind)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Store) readTier(ctx context.Context, tier Tier, key string) (*models.Pool, bool) {
	payload, ok, err := tier.Get(ctx, key)
	if err != nil {
		log.Printf("[poolcache] read failed for %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var pool models.Pool
	if err := json.Unmarshal(payload, &pool); err != nil {
		// Corrupt payload: a miss, overwritten by the next StorePool.
		log.Printf("[poolcache] corrupt payload for %s: %v", key, err)
		return nil, false
	}
	return &pool, true
}

func (s *Store) evaluate(pool *models.Pool, source string, opts ReadOptions) *Entry {
	matches := opts.PolicyHash == "" || pool.PolicyHash == opts.PolicyHash
	if !matches {
		return nil
	}
	expired := !opts.Now.Before(pool.ExpiresAt)
	if expired {
		if !opts.AllowExpired {
			return nil
		}
		// Grace is inclusive at its end: a read exactly at expiry+grace
		// still serves.
		if opts.Now.After(pool.ExpiresAt.Add(opts.Grace)) {
			return nil
		}
	}
	return &Entry{
		Pool:          *pool,
		Source:        source,
		IsExpired:     expired,
		MatchesPolicy: matches,
	}
}
