package hero

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marquee/internal/metadata"
	"marquee/internal/models"
	"marquee/internal/policy"
)

// ProgressEvent is emitted once per slot during a build, then once more with
// Done set after normalization.
type ProgressEvent struct {
	BuildID  uuid.UUID        `json:"buildId"`
	Kind     models.MediaKind `json:"kind"`
	Slot     string           `json:"slot,omitempty"`
	Selected int              `json:"selected"`
	Target   int              `json:"target"`
	Done     bool             `json:"done"`
}

type ProgressFunc func(ProgressEvent)

// Builder assembles hero pools from catalog items. Enricher may be nil, in
// which case items are normalized from catalog data alone.
type Builder struct {
	Enricher   *metadata.Enricher
	OnProgress ProgressFunc
	Rand       *rand.Rand
	Now        func() time.Time
}

func NewBuilder(enricher *metadata.Enricher) *Builder {
	return &Builder{
		Enricher: enricher,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:      time.Now,
	}
}

const enrichWorkers = 4

type slotPick struct {
	item models.CatalogItem
	slot string
}

// BuildPool selects, enriches and normalizes a pool for one kind. Selection
// never fails; enrichment failures degrade to catalog-only entries. The only
// error paths are context cancellation.
func (b *Builder) BuildPool(ctx context.Context, kind models.MediaKind, items []models.CatalogItem, pol policy.Policy, history []models.HistoryEntry) (*models.Pool, error) {
	now := b.Now()
	buildID := uuid.New()
	poolSize := pol.PoolSize(kind)

	targets := slotTargets(pol, poolSize)
	recent := recentSet(history, now.Add(-pol.HistoryLookback()))

	used := make(map[uuid.UUID]bool, poolSize)
	state := newDiversityState(recent)
	var picks []slotPick

	catchAll := pol.CatchAllSlot()
	deficit := 0
	for _, slot := range pol.Slots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := targets[slot.Name]
		if slot.Name == catchAll {
			target += deficit
		}
		ranked := rankSlotCandidates(slot, available(items, used), now, b.Rand)
		chosen := pickDiverse(ranked, target, state, pol.Diversity)
		for _, it := range chosen {
			used[it.ID] = true
			picks = append(picks, slotPick{item: it, slot: slot.Name})
		}
		if slot.Name != catchAll && len(chosen) < target {
			deficit += target - len(chosen)
		}
		b.progress(ProgressEvent{BuildID: buildID, Kind: kind, Slot: slot.Name, Selected: len(chosen), Target: target})
	}

	heroes := b.enrichAndNormalize(ctx, picks, pol)

	summary := make(map[string]int, len(pol.Slots))
	for _, p := range picks {
		summary[p.slot]++
	}

	pool := &models.Pool{
		Kind:        kind,
		Items:       heroes,
		SlotSummary: summary,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(pol.TTL()),
		PolicyHash:  policy.Hash(pol),
		History:     advanceHistory(history, picks, now, pol, poolSize),
	}
	b.progress(ProgressEvent{BuildID: buildID, Kind: kind, Selected: len(heroes), Target: poolSize, Done: true})
	return pool, nil
}

// slotTargets converts quotas into integer counts. Rounding drift lands on
// the catch-all slot so the counts always sum to poolSize.
func slotTargets(pol policy.Policy, poolSize int) map[string]int {
	targets := make(map[string]int, len(pol.Slots))
	catchAll := pol.CatchAllSlot()
	assigned := 0
	for _, slot := range pol.Slots {
		if slot.Name == catchAll {
			continue
		}
		n := int(math.Round(float64(poolSize) * slot.Quota))
		targets[slot.Name] = n
		assigned += n
	}
	remainder := poolSize - assigned
	if remainder < 0 {
		// Over-rounded; trim from the lowest-priority non-catch-all slots.
		for i := len(pol.Slots) - 1; i >= 0 && remainder < 0; i-- {
			name := pol.Slots[i].Name
			if name == catchAll {
				continue
			}
			for targets[name] > 0 && remainder < 0 {
				targets[name]--
				remainder++
			}
		}
	}
	targets[catchAll] = remainder
	return targets
}

func available(items []models.CatalogItem, used map[uuid.UUID]bool) []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(items))
	for _, it := range items {
		if !used[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func recentSet(history []models.HistoryEntry, since time.Time) map[uuid.UUID]bool {
	recent := make(map[uuid.UUID]bool, len(history))
	for _, h := range history {
		if h.ShownAt.After(since) {
			recent[h.ItemID] = true
		}
	}
	return recent
}

type diversityState struct {
	genres map[string]int
	years  map[int]int
	recent map[uuid.UUID]bool
}

func newDiversityState(recent map[uuid.UUID]bool) *diversityState {
	return &diversityState{
		genres: make(map[string]int),
		years:  make(map[int]int),
		recent: recent,
	}
}

func (s *diversityState) record(it models.CatalogItem) {
	for _, g := range it.Genres {
		s.genres[g]++
	}
	if it.Year != nil {
		s.years[*it.Year]++
	}
}

func (s *diversityState) penalty(it models.CatalogItem, div policy.Diversity) float64 {
	var p float64
	for _, g := range it.Genres {
		p += div.Genre * float64(s.genres[g])
	}
	if it.Year != nil {
		p += div.Year * float64(s.years[*it.Year])
	}
	// Recently shown items carry the anti-repeat weight, so a weight of
	// zero turns the demotion off entirely.
	if s.recent[it.ID] {
		p += div.AntiRepeat
	}
	return p
}

// pickDiverse greedily selects up to target items. Each round scores the
// remaining candidates by rank position plus the weighted overlap with what
// was already selected plus the anti-repeat weight for recently shown items,
// and takes the lowest score. Zero weights reduce this to plain rank order.
func pickDiverse(ranked []models.CatalogItem, target int, state *diversityState, div policy.Diversity) []models.CatalogItem {
	if target <= 0 || len(ranked) == 0 {
		return nil
	}
	remaining := append([]models.CatalogItem(nil), ranked...)
	span := float64(len(remaining))
	var chosen []models.CatalogItem
	for len(chosen) < target && len(remaining) > 0 {
		best, bestScore := 0, math.Inf(1)
		for i, it := range remaining {
			score := float64(i)/span + state.penalty(it, div)
			if score < bestScore {
				best, bestScore = i, score
			}
		}
		pick := remaining[best]
		chosen = append(chosen, pick)
		state.record(pick)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return chosen
}

// enrichAndNormalize fetches metadata for a batch of picks with a small
// worker pool, joining before normalization so the returned slice keeps the
// slot-priority order of the picks.
func (b *Builder) enrichAndNormalize(ctx context.Context, picks []slotPick, pol policy.Policy) []models.HeroItem {
	details := make([]*metadata.EnrichedDetail, len(picks))
	if b.Enricher != nil {
		var wg sync.WaitGroup
		sem := make(chan struct{}, enrichWorkers)
		for i, p := range picks {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, item models.CatalogItem) {
				defer wg.Done()
				defer func() { <-sem }()
				res := b.Enricher.FetchDetailsForItem(ctx, item)
				details[i] = res.Data
			}(i, p.item)
		}
		wg.Wait()
	}

	heroes := make([]models.HeroItem, 0, len(picks))
	for i, p := range picks {
		heroes = append(heroes, NormalizeItem(p.item, details[i], pol))
	}
	return heroes
}

// advanceHistory appends the new picks and prunes entries outside the
// lookback window, keeping at most four pool-sizes of the newest entries.
func advanceHistory(history []models.HistoryEntry, picks []slotPick, now time.Time, pol policy.Policy, poolSize int) []models.HistoryEntry {
	cutoff := now.Add(-pol.HistoryLookback())
	next := make([]models.HistoryEntry, 0, len(history)+len(picks))
	for _, h := range history {
		if h.ShownAt.After(cutoff) {
			next = append(next, h)
		}
	}
	for _, p := range picks {
		next = append(next, models.HistoryEntry{ItemID: p.item.ID, ShownAt: now})
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].ShownAt.After(next[j].ShownAt) })
	if limit := poolSize * 4; len(next) > limit {
		log.Printf("[hero] pruning history from %d to %d entries", len(next), limit)
		next = next[:limit]
	}
	return next
}

func (b *Builder) progress(ev ProgressEvent) {
	if b.OnProgress != nil {
		b.OnProgress(ev)
	}
}
