package metadata

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// detailCache caches provider lookups keyed by (kind, id) with a per-entry
// TTL. Entries live in memory for the current process and spill to a durable
// table so restarts don't re-fetch the whole catalog. A corrupt or
// unwritable durable store degrades the cache to memory-only with a logged
// warning, never an error.
type detailCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	db      *sql.DB // nil = memory-only
	warned  bool
}

type cacheEntry struct {
	detail    *EnrichedDetail
	fetchedAt time.Time
}

func newDetailCache(db *sql.DB, ttl time.Duration) *detailCache {
	c := &detailCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		db:      db,
	}
	c.pruneDurable()
	return c
}

func cacheKey(kind, id string) string {
	return kind + ":" + id
}

// get returns the cached detail and its original fetch time.
func (c *detailCache) get(kind, id string, now time.Time) (*EnrichedDetail, time.Time, bool) {
	key := cacheKey(kind, id)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.detail, entry.fetchedAt, true
	}

	if c.db == nil {
		return nil, time.Time{}, false
	}

	var payload string
	var fetchedAt time.Time
	err := c.db.QueryRow(`SELECT payload, fetched_at FROM enrich_cache WHERE cache_key = ?`, key).
		Scan(&payload, &fetchedAt)
	if err != nil {
		return nil, time.Time{}, false
	}
	if now.Sub(fetchedAt) >= c.ttl {
		return nil, time.Time{}, false
	}
	var detail EnrichedDetail
	if err := json.Unmarshal([]byte(payload), &detail); err != nil {
		// Corrupt row: treat as absent; the next put overwrites it.
		return nil, time.Time{}, false
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{detail: &detail, fetchedAt: fetchedAt}
	c.mu.Unlock()
	return &detail, fetchedAt, true
}

func (c *detailCache) put(kind, id string, detail *EnrichedDetail, now time.Time) {
	key := cacheKey(kind, id)

	c.mu.Lock()
	c.entries[key] = cacheEntry{detail: detail, fetchedAt: now}
	c.mu.Unlock()

	if c.db == nil {
		return
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return
	}
	_, err = c.db.Exec(`INSERT INTO enrich_cache (cache_key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		key, string(payload), now)
	if err != nil {
		c.mu.Lock()
		if !c.warned {
			log.Printf("[metadata] durable cache write failed, continuing memory-only: %v", err)
			c.warned = true
		}
		c.mu.Unlock()
	}
}

// pruneDurable drops expired rows at startup so the table doesn't grow
// unbounded across long-lived deployments.
func (c *detailCache) pruneDurable() {
	if c.db == nil {
		return
	}
	cutoff := time.Now().Add(-c.ttl)
	if _, err := c.db.Exec(`DELETE FROM enrich_cache WHERE fetched_at < ?`, cutoff); err != nil {
		log.Printf("[metadata] durable cache prune failed: %v", err)
	}
}
