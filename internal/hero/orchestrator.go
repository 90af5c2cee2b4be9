package hero

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"marquee/internal/models"
	"marquee/internal/policy"
	"marquee/internal/poolcache"
)

// ErrDisabled is returned when the hero pipeline is switched off.
var ErrDisabled = errors.New("hero pipeline disabled")

// CatalogSource is the catalog access the orchestrator needs.
// *catalog.Repository satisfies it.
type CatalogSource interface {
	ListByKind(ctx context.Context, kind models.MediaKind) ([]models.CatalogItem, error)
}

// PoolResult is what handlers hand back to clients.
type PoolResult struct {
	Items       []models.HeroItem `json:"items"`
	FromCache   bool              `json:"fromCache"`
	Stale       bool              `json:"stale,omitempty"`
	PolicyHash  string            `json:"policyHash"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	SlotSummary map[string]int    `json:"slotSummary"`
}

type GetOptions struct {
	Force bool
}

type inflight struct {
	done   chan struct{}
	result *PoolResult
	err    error
}

// Orchestrator ties the policy loader, catalog, builder and cache together
// and deduplicates concurrent builds per kind.
type Orchestrator struct {
	Policy  *policy.Loader
	Catalog CatalogSource
	Builder *Builder
	Store   *poolcache.Store
	Flags   Flags
	Now     func() time.Time

	mu      sync.Mutex
	builds  map[models.MediaKind]*inflight
	hits    atomic.Int64
	misses  atomic.Int64
	lastsMu sync.Mutex
	lasts   map[models.MediaKind]time.Time
	sizes   map[models.MediaKind]int
}

func NewOrchestrator(loader *policy.Loader, cat CatalogSource, builder *Builder, store *poolcache.Store, flags Flags) *Orchestrator {
	return &Orchestrator{
		Policy:  loader,
		Catalog: cat,
		Builder: builder,
		Store:   store,
		Flags:   flags,
		Now:     time.Now,
		builds:  make(map[models.MediaKind]*inflight),
		lasts:   make(map[models.MediaKind]time.Time),
		sizes:   make(map[models.MediaKind]int),
	}
}

// GetPool returns the hero pool for a kind, serving from cache when a fresh
// pool under the current policy hash exists. A cache miss triggers a build;
// concurrent callers for the same kind share one build.
func (o *Orchestrator) GetPool(ctx context.Context, kind models.MediaKind, opts GetOptions) (*PoolResult, error) {
	if !o.Flags.Enabled() {
		return nil, ErrDisabled
	}
	pol := o.Policy.Current()
	hash := o.Policy.CurrentHash()

	if !opts.Force {
		if entry := o.readCache(ctx, kind, pol, hash, false); entry != nil {
			o.hits.Add(1)
			return resultFromPool(entry.Pool, true, false), nil
		}
	}
	o.misses.Add(1)

	o.mu.Lock()
	if fl, ok := o.builds[kind]; ok {
		o.mu.Unlock()
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	o.builds[kind] = fl
	o.mu.Unlock()

	fl.result, fl.err = o.build(ctx, kind, pol, hash)
	close(fl.done)

	o.mu.Lock()
	delete(o.builds, kind)
	o.mu.Unlock()

	return fl.result, fl.err
}

func (o *Orchestrator) build(ctx context.Context, kind models.MediaKind, pol policy.Policy, hash string) (*PoolResult, error) {
	items, err := o.Catalog.ListByKind(ctx, kind)
	if err != nil {
		// Catalog unreachable is the one hard failure. Serve a stale pool
		// inside the grace window before giving up.
		if entry := o.readCache(ctx, kind, pol, hash, true); entry != nil {
			log.Printf("[hero] catalog unavailable for %s, serving stale pool: %v", kind, err)
			return resultFromPool(entry.Pool, true, true), nil
		}
		return nil, fmt.Errorf("listing %s catalog: %w", kind, err)
	}

	history := o.Store.GetHistory(ctx, kind)
	pool, err := o.Builder.BuildPool(ctx, kind, items, pol, history)
	if err != nil {
		return nil, err
	}
	o.backfill(ctx, pool, pol)

	if err := o.Store.StorePool(ctx, *pool); err != nil {
		log.Printf("[hero] storing %s pool failed: %v", kind, err)
	}
	o.lastsMu.Lock()
	o.lasts[kind] = pool.UpdatedAt
	o.sizes[kind] = len(pool.Items)
	o.lastsMu.Unlock()

	return resultFromPool(*pool, false, false), nil
}

func resultFromPool(pool models.Pool, fromCache, stale bool) *PoolResult {
	return &PoolResult{
		Items:       pool.Items,
		FromCache:   fromCache,
		Stale:       stale,
		PolicyHash:  pool.PolicyHash,
		UpdatedAt:   pool.UpdatedAt,
		ExpiresAt:   pool.ExpiresAt,
		SlotSummary: pool.SlotSummary,
	}
}

// backfill tops up a short pool from the preferred fallback kind.
func (o *Orchestrator) backfill(ctx context.Context, pool *models.Pool, pol policy.Policy) {
	min := pol.Rotation.MinPoolSize
	if len(pool.Items) >= min || pol.Fallback.Prefer == pool.Kind {
		return
	}
	donors, err := o.Catalog.ListByKind(ctx, pol.Fallback.Prefer)
	if err != nil {
		log.Printf("[hero] fallback backfill from %s failed: %v", pol.Fallback.Prefer, err)
		return
	}
	present := make(map[string]bool, len(pool.Items))
	for _, h := range pool.Items {
		present[h.ID] = true
	}
	for _, it := range donors {
		if len(pool.Items) >= min {
			break
		}
		if !pol.Fallback.AllowDuplicates && present[it.ID.String()] {
			continue
		}
		hero := NormalizeItem(it, nil, pol)
		pool.Items = append(pool.Items, hero)
		pool.SlotSummary["fallback"]++
		present[hero.ID] = true
	}
}

func (o *Orchestrator) readCache(ctx context.Context, kind models.MediaKind, pol policy.Policy, hash string, allowExpired bool) *poolcache.Entry {
	return o.Store.GetStoredPool(ctx, kind, poolcache.ReadOptions{
		Now:          o.Now(),
		PolicyHash:   hash,
		AllowExpired: allowExpired,
		Grace:        pol.Grace(),
	})
}

// ShortPool reports whether the last built pool for a kind came up short of
// the policy minimum. Kinds never built are not short.
func (o *Orchestrator) ShortPool(kind models.MediaKind) bool {
	o.lastsMu.Lock()
	n, ok := o.sizes[kind]
	o.lastsMu.Unlock()
	if !ok {
		return false
	}
	return n < o.Policy.Current().Rotation.MinPoolSize
}

// Invalidate drops the cached pool for a kind from all tiers.
func (o *Orchestrator) Invalidate(ctx context.Context, kind models.MediaKind) error {
	return o.Store.InvalidatePool(ctx, kind)
}

// Rebuild forces a fresh build for a kind, bypassing the cache.
func (o *Orchestrator) Rebuild(ctx context.Context, kind models.MediaKind) (*PoolResult, error) {
	return o.GetPool(ctx, kind, GetOptions{Force: true})
}

// DebugSnapshot reports cache counters, last build times and any builds
// currently in flight.
type DebugSnapshot struct {
	Enabled       bool                 `json:"enabled"`
	PolicyHash    string               `json:"policyHash"`
	PolicyIssues  []string             `json:"policyIssues,omitempty"`
	Hits          int64                `json:"cacheHits"`
	Misses        int64                `json:"cacheMisses"`
	LastBuilds    map[string]time.Time `json:"lastBuilds"`
	PendingBuilds []string             `json:"pendingBuilds,omitempty"`
}

func (o *Orchestrator) Snapshot() DebugSnapshot {
	o.lastsMu.Lock()
	lasts := make(map[string]time.Time, len(o.lasts))
	for k, v := range o.lasts {
		lasts[string(k)] = v
	}
	o.lastsMu.Unlock()

	o.mu.Lock()
	var pending []string
	for kind := range o.builds {
		pending = append(pending, string(kind))
	}
	o.mu.Unlock()
	sort.Strings(pending)

	return DebugSnapshot{
		Enabled:       o.Flags.Enabled(),
		PolicyHash:    o.Policy.CurrentHash(),
		PolicyIssues:  o.Policy.ValidationIssues(),
		Hits:          o.hits.Load(),
		Misses:        o.misses.Load(),
		LastBuilds:    lasts,
		PendingBuilds: pending,
	}
}
