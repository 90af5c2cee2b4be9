package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type MediaKind string

const (
	KindMovies MediaKind = "movies"
	KindSeries MediaKind = "series"
)

// ParseMediaKind maps a URL/path value to a known kind.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case KindMovies:
		return KindMovies, true
	case KindSeries:
		return KindSeries, true
	}
	return "", false
}

// AllKinds returns every kind a pool is built for, in a stable order.
func AllKinds() []MediaKind {
	return []MediaKind{KindMovies, KindSeries}
}

// ──────────────────── Catalog ────────────────────

// CatalogSeason is the per-season structure carried on series catalog items.
type CatalogSeason struct {
	Number       int `json:"number" db:"season_number"`
	EpisodeCount int `json:"episode_count" db:"episode_count"`
}

// CatalogItem is a raw entry from the media catalog. The hero subsystem
// reads these; it never writes them back.
type CatalogItem struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Kind       MediaKind  `json:"kind" db:"kind"`
	Title      string     `json:"title" db:"title"`
	Tagline    *string    `json:"tagline,omitempty" db:"tagline"`
	Summary    *string    `json:"summary,omitempty" db:"summary"`
	Year       *int       `json:"year,omitempty" db:"year"`
	Rating     *float64   `json:"rating,omitempty" db:"rating"`
	Genres     []string   `json:"genres,omitempty" db:"-"`
	DurationMs *int64     `json:"duration_ms,omitempty" db:"duration_ms"`
	TMDBID     *string    `json:"tmdb_id,omitempty" db:"tmdb_id"`
	IMDBID     *string    `json:"imdb_id,omitempty" db:"imdb_id"`
	ThumbPath  *string    `json:"thumb_path,omitempty" db:"thumb_path"`
	AddedAt    time.Time  `json:"added_at" db:"added_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	// Series only (not stored on the items table)
	Seasons []CatalogSeason `json:"seasons,omitempty" db:"-"`
}

// ──────────────────── Hero ────────────────────

// CTA is a navigable reference into the catalog UI. It always points at the
// local catalog identity so navigation works even when enrichment is down.
type CTA struct {
	Kind   string `json:"kind"` // "movie" | "show"
	ID     string `json:"id"`
	Target string `json:"target"` // e.g. "#/movie/<id>"
}

// HeroItem is the canonical, display-ready shape of one featured item.
type HeroItem struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"` // "movie" | "tv"
	Title         string            `json:"title"`
	Tagline       string            `json:"tagline"`
	Overview      string            `json:"overview"`
	Year          int               `json:"year,omitempty"`
	RuntimeMin    int               `json:"runtime_min,omitempty"`
	Rating        float64           `json:"rating,omitempty"`
	VoteCount     int               `json:"vote_count,omitempty"`
	Genres        []string          `json:"genres,omitempty"`
	Certification string            `json:"certification,omitempty"`
	Backdrops     []string          `json:"backdrops,omitempty"`
	SeasonCount   int               `json:"season_count,omitempty"`
	EpisodeCount  int               `json:"episode_count,omitempty"`
	CTA           CTA               `json:"cta"`
	IDs           map[string]string `json:"ids"`
	Source        string            `json:"source"` // "tmdb" | "catalog" | "fallback"
}

// HistoryEntry records that an item was surfaced in a published pool.
type HistoryEntry struct {
	ItemID  uuid.UUID `json:"item_id"`
	ShownAt time.Time `json:"shown_at"`
}

// Pool is one built hero rotation for a kind. Pools are replaced wholesale
// on rebuild, never patched.
type Pool struct {
	Kind        MediaKind      `json:"kind"`
	Items       []HeroItem     `json:"items"`
	SlotSummary map[string]int `json:"slot_summary"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	PolicyHash  string         `json:"policy_hash"`
	History     []HistoryEntry `json:"history"`
}
