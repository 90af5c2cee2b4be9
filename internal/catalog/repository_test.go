package catalog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"marquee/internal/catalog"
	"marquee/internal/db"
	"marquee/internal/models"
)

func openRepo(t *testing.T) *catalog.Repository {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return catalog.NewRepository(database.DB)
}

func sampleMovie(title string, addedAt time.Time) models.CatalogItem {
	year := 2020
	rating := 7.8
	tmdb := "550"
	return models.CatalogItem{
		ID:      uuid.New(),
		Kind:    models.KindMovies,
		Title:   title,
		Year:    &year,
		Rating:  &rating,
		Genres:  []string{"Drama", "Thriller"},
		TMDBID:  &tmdb,
		AddedAt: addedAt,
	}
}

func TestUpsertAndGetByID(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	item := sampleMovie("Fight Club", time.Now().Add(-time.Hour))
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatalf("item not found after upsert")
	}
	if got.Title != "Fight Club" || got.Kind != models.KindMovies {
		t.Errorf("got %q/%s", got.Title, got.Kind)
	}
	if got.Year == nil || *got.Year != 2020 || got.Rating == nil || *got.Rating != 7.8 {
		t.Errorf("year/rating not round-tripped: %+v", got)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Drama" {
		t.Errorf("genres = %v", got.Genres)
	}
	if got.TMDBID == nil || *got.TMDBID != "550" {
		t.Errorf("tmdb id = %v", got.TMDBID)
	}
}

func TestGetByIDMissing(t *testing.T) {
	repo := openRepo(t)
	got, err := repo.GetByID(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing item, got %+v", got)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	item := sampleMovie("Old Title", time.Now().Add(-time.Hour))
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	item.Title = "New Title"
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "New Title" {
		t.Errorf("title = %q, want updated title", got.Title)
	}
	n, err := repo.CountByKind(ctx, models.KindMovies)
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 after replace", n)
	}
}

func TestListByKindOrdersNewestFirst(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	older := sampleMovie("Older", base)
	newer := sampleMovie("Newer", base.Add(2*time.Hour))
	for _, it := range []models.CatalogItem{older, newer} {
		if err := repo.Upsert(ctx, it); err != nil {
			t.Fatalf("Upsert %s: %v", it.Title, err)
		}
	}

	items, err := repo.ListByKind(ctx, models.KindMovies)
	if err != nil {
		t.Fatalf("ListByKind: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Title != "Newer" {
		t.Errorf("first item %q, want newest first", items[0].Title)
	}

	series, err := repo.ListByKind(ctx, models.KindSeries)
	if err != nil {
		t.Fatalf("ListByKind series: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("series list = %d items, want 0", len(series))
	}
}

func TestSeriesSeasonsRoundTrip(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	show := models.CatalogItem{
		ID:      uuid.New(),
		Kind:    models.KindSeries,
		Title:   "The Wire",
		AddedAt: time.Now(),
		Seasons: []models.CatalogSeason{
			{Number: 1, EpisodeCount: 13},
			{Number: 2, EpisodeCount: 12},
		},
	}
	if err := repo.Upsert(ctx, show); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	items, err := repo.ListByKind(ctx, models.KindSeries)
	if err != nil {
		t.Fatalf("ListByKind: %v", err)
	}
	if len(items) != 1 || len(items[0].Seasons) != 2 {
		t.Fatalf("seasons not attached: %+v", items)
	}
	if items[0].Seasons[1].EpisodeCount != 12 {
		t.Errorf("season 2 episodes = %d, want 12", items[0].Seasons[1].EpisodeCount)
	}

	// Re-upsert with a different season set replaces the rows.
	show.Seasons = []models.CatalogSeason{{Number: 1, EpisodeCount: 13}}
	if err := repo.Upsert(ctx, show); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	got, err := repo.GetByID(ctx, show.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Seasons) != 1 {
		t.Errorf("seasons = %d after replace, want 1", len(got.Seasons))
	}
}
