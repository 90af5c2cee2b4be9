package policy

import "marquee/internal/models"

// Well-known slot names. Unknown names fall back to random ordering in the
// selector.
const (
	SlotNew        = "new"
	SlotTopRated   = "topRated"
	SlotOldButGold = "oldButGold"
	SlotRandom     = "random"
)

// slotPriority fixes the processing order for slots: known names first in
// declaration-independent order, the catch-all always last. Cross-slot
// deduplication depends on this order being stable.
var slotPriority = map[string]int{
	SlotNew:        0,
	SlotTopRated:   1,
	SlotOldButGold: 2,
	SlotRandom:     100,
}

// Defaults returns the built-in policy used when the source is missing,
// unparseable, or field-by-field invalid.
func Defaults() Policy {
	return Policy{
		PoolSizeMovies: 8,
		PoolSizeSeries: 6,
		Slots: []Slot{
			{Name: SlotNew, Quota: 0.35},
			{Name: SlotTopRated, Quota: 0.25, MinRating: 7.5},
			{Name: SlotOldButGold, Quota: 0.15, MinRating: 7.0, MinAgeYears: 15},
			{Name: SlotRandom, Quota: 0.25},
		},
		Diversity: Diversity{Genre: 0.4, Year: 0.2, AntiRepeat: 0.6},
		Rotation: Rotation{
			IntervalMinutes:      360,
			MinPoolSize:          4,
			HistoryLookbackHours: 72,
		},
		TextClamp: TextClamp{Title: 60, Subtitle: 90, Summary: 280},
		Fallback:  Fallback{Prefer: models.KindMovies, AllowDuplicates: false},
		Language:  "en-US",
		Cache:     Cache{TTLHours: 24, GraceMinutes: 15},
	}
}
