package hero_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"marquee/internal/hero"
	"marquee/internal/models"
	"marquee/internal/policy"
)

var buildNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testBuilder() *hero.Builder {
	return &hero.Builder{
		Rand: rand.New(rand.NewSource(1)),
		Now:  func() time.Time { return buildNow },
	}
}

func catalogItem(title string, year int, rating float64, addedAgo time.Duration, genres ...string) models.CatalogItem {
	y, r := year, rating
	added := buildNow.Add(-addedAgo)
	return models.CatalogItem{
		ID:        uuid.New(),
		Kind:      models.KindMovies,
		Title:     title,
		Year:      &y,
		Rating:    &r,
		Genres:    genres,
		AddedAt:   added,
		UpdatedAt: added,
	}
}

// mixedCatalog has enough qualifying candidates for every default slot.
func mixedCatalog() []models.CatalogItem {
	items := []models.CatalogItem{
		catalogItem("Fresh A", 2025, 6.1, 1*time.Hour, "Drama"),
		catalogItem("Fresh B", 2025, 6.2, 2*time.Hour, "Comedy"),
		catalogItem("Fresh C", 2024, 6.3, 3*time.Hour, "Action"),
		catalogItem("Fresh D", 2024, 6.4, 4*time.Hour, "Horror"),
		catalogItem("Rated A", 2021, 9.1, 400*24*time.Hour, "Drama"),
		catalogItem("Rated B", 2020, 8.8, 410*24*time.Hour, "Thriller"),
		catalogItem("Rated C", 2019, 8.4, 420*24*time.Hour, "Sci-Fi"),
		catalogItem("Rated D", 2018, 8.0, 430*24*time.Hour, "Comedy"),
		catalogItem("Classic A", 1994, 8.9, 500*24*time.Hour, "Drama"),
		catalogItem("Classic B", 1987, 7.6, 510*24*time.Hour, "Action"),
		catalogItem("Classic C", 1999, 7.1, 520*24*time.Hour, "Sci-Fi"),
		catalogItem("Filler A", 2015, 5.0, 200*24*time.Hour, "Comedy"),
		catalogItem("Filler B", 2014, 5.2, 210*24*time.Hour, "Drama"),
		catalogItem("Filler C", 2013, 5.4, 220*24*time.Hour, "Horror"),
		catalogItem("Filler D", 2012, 5.6, 230*24*time.Hour, "Action"),
		catalogItem("Filler E", 2011, 5.8, 240*24*time.Hour, "Thriller"),
	}
	return items
}

func TestBuildPoolFillsSlotQuotas(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()

	pool, err := b.BuildPool(context.Background(), models.KindMovies, mixedCatalog(), pol, nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(pool.Items) != pol.PoolSizeMovies {
		t.Fatalf("pool size = %d, want %d", len(pool.Items), pol.PoolSizeMovies)
	}

	// Defaults on a pool of 8: 35% new, 25% topRated, 15% oldButGold,
	// remainder to random.
	want := map[string]int{"new": 3, "topRated": 2, "oldButGold": 1, "random": 2}
	for slot, n := range want {
		if pool.SlotSummary[slot] != n {
			t.Errorf("slot %s = %d, want %d (summary %v)", slot, pool.SlotSummary[slot], n, pool.SlotSummary)
		}
	}

	total := 0
	for _, n := range pool.SlotSummary {
		total += n
	}
	if total != pol.PoolSizeMovies {
		t.Errorf("slot summary total = %d, want %d", total, pol.PoolSizeMovies)
	}
}

func TestBuildPoolNoDuplicates(t *testing.T) {
	b := testBuilder()
	// One item that leads every ranking at once.
	star := catalogItem("Star", 1990, 9.9, 1*time.Minute, "Drama")
	items := append(mixedCatalog(), star)

	pool, err := b.BuildPool(context.Background(), models.KindMovies, items, policy.Defaults(), nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	seen := make(map[string]bool, len(pool.Items))
	for _, h := range pool.Items {
		if seen[h.ID] {
			t.Fatalf("item %s (%s) appears twice", h.ID, h.Title)
		}
		seen[h.ID] = true
	}
	if !seen[star.ID.String()] {
		t.Errorf("expected top-of-every-ranking item to be selected once")
	}
}

func TestBuildPoolRedistributesDeficitToCatchAll(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()

	// No item is old enough for oldButGold, so its whole quota must land
	// on the random slot.
	var items []models.CatalogItem
	for _, it := range mixedCatalog() {
		if *it.Year < 2011 {
			continue
		}
		items = append(items, it)
	}

	pool, err := b.BuildPool(context.Background(), models.KindMovies, items, pol, nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if pool.SlotSummary["oldButGold"] != 0 {
		t.Fatalf("oldButGold = %d, want 0", pool.SlotSummary["oldButGold"])
	}
	if pool.SlotSummary["random"] != 3 {
		t.Errorf("random = %d, want 3 (deficit absorbed); summary %v", pool.SlotSummary["random"], pool.SlotSummary)
	}
	if len(pool.Items) != pol.PoolSizeMovies {
		t.Errorf("pool size = %d, want %d", len(pool.Items), pol.PoolSizeMovies)
	}
}

func TestBuildPoolAvoidsRecentlyShown(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()
	pol.PoolSizeMovies = 2
	pol.Slots = []policy.Slot{{Name: policy.SlotNew, Quota: 1.0}}
	pol.Diversity = policy.Diversity{AntiRepeat: 1}

	a := catalogItem("Newest", 2025, 7.0, 1*time.Hour, "Drama")
	rest := []models.CatalogItem{
		catalogItem("Second", 2025, 7.0, 2*time.Hour, "Drama"),
		catalogItem("Third", 2025, 7.0, 3*time.Hour, "Drama"),
		catalogItem("Fourth", 2025, 7.0, 4*time.Hour, "Drama"),
	}
	history := []models.HistoryEntry{{ItemID: a.ID, ShownAt: buildNow.Add(-6 * time.Hour)}}

	pool, err := b.BuildPool(context.Background(), models.KindMovies, append([]models.CatalogItem{a}, rest...), pol, history)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	for _, h := range pool.Items {
		if h.ID == a.ID.String() {
			t.Fatalf("recently shown item selected while fresh alternatives exist")
		}
	}
	if len(pool.Items) != 2 {
		t.Fatalf("pool size = %d, want 2", len(pool.Items))
	}
}

func TestAntiRepeatWeightZeroDisablesPenalty(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()
	pol.PoolSizeMovies = 1
	pol.Slots = []policy.Slot{{Name: policy.SlotNew, Quota: 1.0}}
	pol.Diversity = policy.Diversity{AntiRepeat: 0}

	newest := catalogItem("Newest", 2025, 7.0, 1*time.Hour)
	older := catalogItem("Older", 2025, 7.0, 2*time.Hour)
	history := []models.HistoryEntry{{ItemID: newest.ID, ShownAt: buildNow.Add(-6 * time.Hour)}}

	pool, err := b.BuildPool(context.Background(), models.KindMovies, []models.CatalogItem{newest, older}, pol, history)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(pool.Items) != 1 || pool.Items[0].ID != newest.ID.String() {
		t.Fatalf("zero anti-repeat weight must keep rank order, got %+v", pool.Items)
	}
}

func TestBuildPoolReusesRecentWhenNothingElseQualifies(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()
	pol.PoolSizeMovies = 2
	pol.Slots = []policy.Slot{{Name: policy.SlotNew, Quota: 1.0}}

	a := catalogItem("Only A", 2025, 7.0, 1*time.Hour)
	c := catalogItem("Only B", 2025, 7.0, 2*time.Hour)
	history := []models.HistoryEntry{
		{ItemID: a.ID, ShownAt: buildNow.Add(-1 * time.Hour)},
		{ItemID: c.ID, ShownAt: buildNow.Add(-1 * time.Hour)},
	}

	pool, err := b.BuildPool(context.Background(), models.KindMovies, []models.CatalogItem{a, c}, pol, history)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(pool.Items) != 2 {
		t.Fatalf("pool size = %d, want 2: anti-repeat must demote, not exclude", len(pool.Items))
	}
}

func TestBuildPoolProgressEvents(t *testing.T) {
	b := testBuilder()
	var events []hero.ProgressEvent
	b.OnProgress = func(ev hero.ProgressEvent) { events = append(events, ev) }

	pol := policy.Defaults()
	if _, err := b.BuildPool(context.Background(), models.KindMovies, mixedCatalog(), pol, nil); err != nil {
		t.Fatalf("BuildPool: %v", err)
	}

	if len(events) != len(pol.Slots)+1 {
		t.Fatalf("got %d progress events, want %d", len(events), len(pol.Slots)+1)
	}
	for i, ev := range events[:len(events)-1] {
		if ev.Done {
			t.Errorf("event %d marked done before the final event", i)
		}
		if ev.Slot == "" {
			t.Errorf("event %d has no slot name", i)
		}
		if ev.BuildID != events[0].BuildID {
			t.Errorf("event %d has a different build id", i)
		}
	}
	last := events[len(events)-1]
	if !last.Done {
		t.Fatalf("final event not marked done")
	}
	if last.Selected != pol.PoolSizeMovies {
		t.Errorf("final selected = %d, want %d", last.Selected, pol.PoolSizeMovies)
	}
}

func TestBuildPoolStampsPolicyAndExpiry(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()

	pool, err := b.BuildPool(context.Background(), models.KindMovies, mixedCatalog(), pol, nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if pool.PolicyHash != policy.Hash(pol) {
		t.Errorf("policy hash = %q, want %q", pool.PolicyHash, policy.Hash(pol))
	}
	if !pool.UpdatedAt.Equal(buildNow) {
		t.Errorf("updated at = %v, want %v", pool.UpdatedAt, buildNow)
	}
	if want := buildNow.Add(pol.TTL()); !pool.ExpiresAt.Equal(want) {
		t.Errorf("expires at = %v, want %v", pool.ExpiresAt, want)
	}
}

func TestBuildPoolAdvancesHistory(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()
	pol.PoolSizeMovies = 2
	pol.Slots = []policy.Slot{{Name: policy.SlotRandom, Quota: 1.0}}

	// Nine in-window entries plus two picks exceeds the 4x pool cap.
	var history []models.HistoryEntry
	for i := 0; i < 9; i++ {
		history = append(history, models.HistoryEntry{
			ItemID:  uuid.New(),
			ShownAt: buildNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	// Outside the lookback window, must be pruned.
	stale := models.HistoryEntry{ItemID: uuid.New(), ShownAt: buildNow.Add(-pol.HistoryLookback() - time.Hour)}
	history = append(history, stale)

	pool, err := b.BuildPool(context.Background(), models.KindMovies, mixedCatalog(), pol, history)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if limit := pol.PoolSizeMovies * 4; len(pool.History) != limit {
		t.Fatalf("history length = %d, want capped at %d", len(pool.History), limit)
	}
	if !pool.History[0].ShownAt.Equal(buildNow) {
		t.Errorf("newest history entry shown at %v, want %v", pool.History[0].ShownAt, buildNow)
	}
	for _, h := range pool.History {
		if h.ItemID == stale.ItemID {
			t.Errorf("entry outside the lookback window survived pruning")
		}
	}
}

func TestBuildPoolTwoFromThree(t *testing.T) {
	b := testBuilder()
	pol := policy.Defaults()
	pol.PoolSizeMovies = 2
	pol.Slots = []policy.Slot{{Name: policy.SlotRandom, Quota: 1.0}}

	items := []models.CatalogItem{
		catalogItem("High", 2020, 8.5, 1*time.Hour),
		catalogItem("Mid", 2019, 7.3, 2*time.Hour),
		catalogItem("Low", 2018, 6.8, 3*time.Hour),
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID.String()] = true
	}

	pool, err := b.BuildPool(context.Background(), models.KindMovies, items, pol, nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(pool.Items) != 2 {
		t.Fatalf("pool size = %d, want 2", len(pool.Items))
	}
	for _, h := range pool.Items {
		if !known[h.ID] {
			t.Errorf("selected item %s not in the catalog", h.ID)
		}
	}
}

func TestBuildPoolWithoutEnricherUsesCatalogData(t *testing.T) {
	b := testBuilder() // no enricher
	pool, err := b.BuildPool(context.Background(), models.KindMovies, mixedCatalog(), policy.Defaults(), nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	for _, h := range pool.Items {
		if h.Title == "" {
			t.Errorf("item %s has an empty title", h.ID)
		}
		if h.Source != "catalog" {
			t.Errorf("item %s source = %q, want catalog", h.ID, h.Source)
		}
	}
}

func TestBuildPoolEmptyCatalog(t *testing.T) {
	b := testBuilder()
	pool, err := b.BuildPool(context.Background(), models.KindMovies, nil, policy.Defaults(), nil)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(pool.Items) != 0 {
		t.Fatalf("expected empty pool, got %d items", len(pool.Items))
	}
}
