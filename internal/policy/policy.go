// Package policy loads and sanitizes the declarative hero-pool policy.
//
// The policy source is a JSON document (local file or fetched URL) with no
// schema guarantees; every field is validated independently and replaced by
// a default when malformed, with each substitution recorded as a
// human-readable validation issue.
package policy

import (
	"time"

	"marquee/internal/models"
)

// Slot is one named partition of the pool allocation. Threshold fields are
// policy data, not hardcoded business rules; slot semantics are resolved by
// name in the selector.
type Slot struct {
	Name        string  `json:"name"`
	Quota       float64 `json:"quota"`
	MinRating   float64 `json:"min_rating,omitempty"`
	MinAgeYears int     `json:"min_age_years,omitempty"`
}

type Diversity struct {
	Genre      float64 `json:"genre"`
	Year       float64 `json:"year"`
	AntiRepeat float64 `json:"anti_repeat"`
}

type Rotation struct {
	IntervalMinutes      int `json:"interval_minutes"`
	MinPoolSize          int `json:"min_pool_size"`
	HistoryLookbackHours int `json:"history_lookback_hours"`
}

type TextClamp struct {
	Title    int `json:"title"`
	Subtitle int `json:"subtitle"`
	Summary  int `json:"summary"`
}

type Fallback struct {
	Prefer          models.MediaKind `json:"prefer"`
	AllowDuplicates bool             `json:"allow_duplicates"`
}

type Cache struct {
	TTLHours     float64 `json:"ttl_hours"`
	GraceMinutes int     `json:"grace_minutes"`
}

// Policy is the fully-populated, immutable configuration one pool build runs
// under. Values are sanitized at load time; no field is ever zero/invalid.
type Policy struct {
	PoolSizeMovies int       `json:"pool_size_movies"`
	PoolSizeSeries int       `json:"pool_size_series"`
	Slots          []Slot    `json:"slots"`
	Diversity      Diversity `json:"diversity"`
	Rotation       Rotation  `json:"rotation"`
	TextClamp      TextClamp `json:"text_clamp"`
	Fallback       Fallback  `json:"fallback"`
	Language       string    `json:"language"`
	Cache          Cache     `json:"cache"`
}

// PoolSize returns the configured pool size for a kind.
func (p Policy) PoolSize(kind models.MediaKind) int {
	if kind == models.KindSeries {
		return p.PoolSizeSeries
	}
	return p.PoolSizeMovies
}

func (p Policy) TTL() time.Duration {
	return time.Duration(p.Cache.TTLHours * float64(time.Hour))
}

func (p Policy) Grace() time.Duration {
	return time.Duration(p.Cache.GraceMinutes) * time.Minute
}

func (p Policy) RotationInterval() time.Duration {
	return time.Duration(p.Rotation.IntervalMinutes) * time.Minute
}

func (p Policy) HistoryLookback() time.Duration {
	return time.Duration(p.Rotation.HistoryLookbackHours) * time.Hour
}

// CatchAllSlot returns the name of the slot that absorbs rounding remainders
// and redistributed deficits. Sanitization guarantees one exists.
func (p Policy) CatchAllSlot() string {
	for _, s := range p.Slots {
		if s.Name == SlotRandom {
			return s.Name
		}
	}
	return SlotRandom
}
