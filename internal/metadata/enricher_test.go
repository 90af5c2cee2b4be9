package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"marquee/internal/models"
)

type fakeProvider struct {
	configured bool
	details    map[string]*EnrichedDetail
	imdbToID   map[string]string
	searchID   string
	searchErr  error

	movieCalls  int
	tvCalls     int
	findCalls   int
	searchCalls int
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) MovieDetails(ctx context.Context, id, language string) (*EnrichedDetail, error) {
	f.movieCalls++
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeProvider) TVDetails(ctx context.Context, id, language string) (*EnrichedDetail, error) {
	f.tvCalls++
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeProvider) SeasonDetails(ctx context.Context, tvID string, seasonNumber int, language string) (*EnrichedDetail, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) FindByIMDB(ctx context.Context, imdbID string, wantTV bool) (string, error) {
	f.findCalls++
	if id, ok := f.imdbToID[imdbID]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func (f *fakeProvider) SearchID(ctx context.Context, title string, year int, wantTV bool) (string, error) {
	f.searchCalls++
	return f.searchID, f.searchErr
}

func strPtr(s string) *string { return &s }

func movieItem(tmdbID, imdbID string) models.CatalogItem {
	item := models.CatalogItem{ID: uuid.New(), Kind: models.KindMovies, Title: "Heat"}
	if tmdbID != "" {
		item.TMDBID = strPtr(tmdbID)
	}
	if imdbID != "" {
		item.IMDBID = strPtr(imdbID)
	}
	return item
}

func TestFetchDetailsUsesKnownTMDBID(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"949": {ID: "949", Title: "Heat"}},
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("949", "tt0113277"))
	if res.Data == nil || res.Data.ID != "949" {
		t.Fatalf("data = %+v, want detail 949", res.Data)
	}
	if res.Source != "tmdb" || res.ResolvedID != "949" {
		t.Errorf("source/id = %q/%q", res.Source, res.ResolvedID)
	}
	if p.findCalls != 0 || p.searchCalls != 0 {
		t.Errorf("fallback resolution ran despite a known id: find=%d search=%d", p.findCalls, p.searchCalls)
	}
}

func TestFetchDetailsFallsBackToIMDBLookup(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"949": {ID: "949"}},
		imdbToID:   map[string]string{"tt0113277": "949"},
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("", "tt0113277"))
	if res.Data == nil || res.ResolvedID != "949" {
		t.Fatalf("resolved = %q, data = %+v", res.ResolvedID, res.Data)
	}
	if p.findCalls != 1 || p.searchCalls != 0 {
		t.Errorf("resolution calls: find=%d search=%d, want 1/0", p.findCalls, p.searchCalls)
	}
}

func TestFetchDetailsFallsBackToSearch(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"949": {ID: "949"}},
		searchID:   "949",
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("", ""))
	if res.Data == nil || res.ResolvedID != "949" {
		t.Fatalf("resolved = %q, data = %+v", res.ResolvedID, res.Data)
	}
	if p.searchCalls != 1 {
		t.Errorf("search calls = %d, want 1", p.searchCalls)
	}
}

func TestFetchDetailsUnresolvableReturnsZero(t *testing.T) {
	p := &fakeProvider{configured: true, searchErr: errors.New("no match")}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("", "tt404"))
	if res.Data != nil || res.ResolvedID != "" {
		t.Fatalf("expected zero result, got %+v", res)
	}
}

func TestFetchDetailsFetchErrorKeepsResolvedID(t *testing.T) {
	p := &fakeProvider{configured: true} // no details, so the fetch fails
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("949", ""))
	if res.Data != nil {
		t.Fatalf("data = %+v, want nil on fetch failure", res.Data)
	}
	if res.ResolvedID != "949" {
		t.Errorf("resolved id = %q, want 949", res.ResolvedID)
	}
}

func TestFetchDetailsUnconfiguredProvider(t *testing.T) {
	p := &fakeProvider{configured: false}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	res := e.FetchDetailsForItem(context.Background(), movieItem("949", ""))
	if res.Data != nil || res.ResolvedID != "" {
		t.Fatalf("expected zero result from an unconfigured provider, got %+v", res)
	}
	if p.movieCalls != 0 {
		t.Errorf("provider called while unconfigured")
	}
}

func TestNilEnricherIsSafe(t *testing.T) {
	var e *Enricher
	res := e.FetchDetailsForItem(context.Background(), movieItem("949", ""))
	if res.Data != nil {
		t.Fatalf("nil enricher returned data")
	}
}

func TestEnrichedDetailCached(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"1399": {ID: "1399", Title: "Game of Thrones"}},
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.GetTVEnriched(ctx, "1399"); err != nil {
			t.Fatalf("GetTVEnriched #%d: %v", i, err)
		}
	}
	if p.tvCalls != 1 {
		t.Errorf("provider fetched %d times, want 1 (cached after first)", p.tvCalls)
	}
}

func TestFetchDetailsReportsCacheProvenance(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"949": {ID: "949", Title: "Heat"}},
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")
	ctx := context.Background()
	item := movieItem("949", "")

	first := e.FetchDetailsForItem(ctx, item)
	if first.Source != "tmdb" {
		t.Fatalf("first source = %q, want tmdb", first.Source)
	}

	second := e.FetchDetailsForItem(ctx, item)
	if second.Source != "cache" {
		t.Fatalf("second source = %q, want cache", second.Source)
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Errorf("cached result fetch time %v, want the original %v", second.FetchedAt, first.FetchedAt)
	}
	if p.movieCalls != 1 {
		t.Errorf("provider fetched %d times, want 1", p.movieCalls)
	}
}

func TestSeriesItemsUseTVDetails(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		details:    map[string]*EnrichedDetail{"1399": {ID: "1399"}},
	}
	e := newEnricherWithProvider(p, time.Hour, "en-US")

	item := models.CatalogItem{ID: uuid.New(), Kind: models.KindSeries, Title: "Game of Thrones", TMDBID: strPtr("1399")}
	res := e.FetchDetailsForItem(context.Background(), item)
	if res.Data == nil {
		t.Fatalf("no data for series item")
	}
	if p.tvCalls != 1 || p.movieCalls != 0 {
		t.Errorf("tv/movie calls = %d/%d, want 1/0", p.tvCalls, p.movieCalls)
	}
}
