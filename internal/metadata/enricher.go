package metadata

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"time"

	"marquee/internal/models"
)

// provider is the slice of Client the enricher needs; tests substitute a
// fake.
type provider interface {
	Configured() bool
	MovieDetails(ctx context.Context, id, language string) (*EnrichedDetail, error)
	TVDetails(ctx context.Context, id, language string) (*EnrichedDetail, error)
	SeasonDetails(ctx context.Context, tvID string, seasonNumber int, language string) (*EnrichedDetail, error)
	FindByIMDB(ctx context.Context, imdbID string, wantTV bool) (string, error)
	SearchID(ctx context.Context, title string, year int, wantTV bool) (string, error)
}

// Result is one enrichment outcome. Data is nil when nothing resolved.
type Result struct {
	Data       *EnrichedDetail
	ResolvedID string
	FetchedAt  time.Time
	Source     string // "cache" | "tmdb"
}

// Enricher resolves and fetches provider detail for catalog items.
type Enricher struct {
	client   provider
	cache    *detailCache
	language string
}

// NewEnricher builds an enricher backed by the given client. db may be nil
// for a memory-only lookup cache.
func NewEnricher(client *Client, db *sql.DB, cacheTTL time.Duration, language string) *Enricher {
	return &Enricher{
		client:   client,
		cache:    newDetailCache(db, cacheTTL),
		language: language,
	}
}

func newEnricherWithProvider(p provider, ttl time.Duration, language string) *Enricher {
	return &Enricher{client: p, cache: newDetailCache(nil, ttl), language: language}
}

// FetchDetailsForItem resolves an external ID for the item and fetches its
// detail. Resolution order: known TMDB ID, then IMDB-ID lookup, then
// title/year search; each step short-circuits on first success. Any failure
// returns a Result with nil Data — enrichment never hard-fails a build.
func (e *Enricher) FetchDetailsForItem(ctx context.Context, item models.CatalogItem) Result {
	if e == nil || e.client == nil || !e.client.Configured() {
		return Result{}
	}

	wantTV := item.Kind == models.KindSeries
	id := e.resolveID(ctx, item, wantTV)
	if id == "" {
		log.Printf("[metadata] no external id resolvable for %q (%s)", item.Title, item.ID)
		return Result{}
	}

	kind, fetch := "movie", func() (*EnrichedDetail, error) {
		return e.client.MovieDetails(ctx, id, e.language)
	}
	if wantTV {
		kind, fetch = "tv", func() (*EnrichedDetail, error) {
			return e.client.TVDetails(ctx, id, e.language)
		}
	}
	detail, fetchedAt, source, err := e.cached(ctx, kind, id, fetch)
	if err != nil {
		log.Printf("[metadata] enrichment fetch failed for %q (tmdb %s): %v", item.Title, id, err)
		return Result{ResolvedID: id}
	}
	return Result{Data: detail, ResolvedID: id, FetchedAt: fetchedAt, Source: source}
}

func (e *Enricher) resolveID(ctx context.Context, item models.CatalogItem, wantTV bool) string {
	if item.TMDBID != nil && *item.TMDBID != "" {
		return *item.TMDBID
	}
	if item.IMDBID != nil && *item.IMDBID != "" {
		if id, err := e.client.FindByIMDB(ctx, *item.IMDBID, wantTV); err == nil && id != "" {
			return id
		}
	}
	year := 0
	if item.Year != nil {
		year = *item.Year
	}
	id, err := e.client.SearchID(ctx, item.Title, year, wantTV)
	if err != nil {
		return ""
	}
	return id
}

// GetMovieEnriched fetches (or serves from cache) movie detail by TMDB ID.
func (e *Enricher) GetMovieEnriched(ctx context.Context, id string) (*EnrichedDetail, error) {
	detail, _, _, err := e.cached(ctx, "movie", id, func() (*EnrichedDetail, error) {
		return e.client.MovieDetails(ctx, id, e.language)
	})
	return detail, err
}

// GetTVEnriched fetches (or serves from cache) show detail by TMDB ID.
func (e *Enricher) GetTVEnriched(ctx context.Context, id string) (*EnrichedDetail, error) {
	detail, _, _, err := e.cached(ctx, "tv", id, func() (*EnrichedDetail, error) {
		return e.client.TVDetails(ctx, id, e.language)
	})
	return detail, err
}

// GetSeasonEnriched fetches (or serves from cache) one season of a show.
func (e *Enricher) GetSeasonEnriched(ctx context.Context, tvID string, seasonNumber int) (*EnrichedDetail, error) {
	key := tvID + "/" + strconv.Itoa(seasonNumber)
	detail, _, _, err := e.cached(ctx, "season", key, func() (*EnrichedDetail, error) {
		return e.client.SeasonDetails(ctx, tvID, seasonNumber, e.language)
	})
	return detail, err
}

// cached reports provenance alongside the detail: the source is "cache" with
// the entry's original fetch time on a hit, "tmdb" with the current time
// after a fresh fetch.
func (e *Enricher) cached(ctx context.Context, kind, id string, fetch func() (*EnrichedDetail, error)) (*EnrichedDetail, time.Time, string, error) {
	now := time.Now()
	if detail, fetchedAt, ok := e.cache.get(kind, id, now); ok {
		return detail, fetchedAt, "cache", nil
	}
	detail, err := fetch()
	if err != nil {
		return nil, time.Time{}, "", err
	}
	e.cache.put(kind, id, detail, now)
	return detail, now, "tmdb", nil
}

