package hero

import (
	"math/rand"
	"sort"
	"time"

	"marquee/internal/models"
	"marquee/internal/policy"
)

// rankSlotCandidates filters and orders candidates for one slot. Slot names
// are data: known names get their scoring function, anything else falls back
// to the random ordering so a policy can introduce slots without a code
// change.
func rankSlotCandidates(slot policy.Slot, candidates []models.CatalogItem, now time.Time, rng *rand.Rand) []models.CatalogItem {
	switch slot.Name {
	case policy.SlotNew:
		return sortedBy(candidates, func(a, b models.CatalogItem) bool {
			return a.AddedAt.After(b.AddedAt)
		})
	case policy.SlotTopRated:
		ranked := filterItems(candidates, func(it models.CatalogItem) bool {
			return slot.MinRating <= 0 || (it.Rating != nil && *it.Rating >= slot.MinRating)
		})
		return sortedBy(ranked, ratingDesc)
	case policy.SlotOldButGold:
		cutoffYear := now.Year() - slot.MinAgeYears
		ranked := filterItems(candidates, func(it models.CatalogItem) bool {
			if it.Year == nil || *it.Year > cutoffYear {
				return false
			}
			return slot.MinRating <= 0 || (it.Rating != nil && *it.Rating >= slot.MinRating)
		})
		return sortedBy(ranked, ratingDesc)
	default:
		shuffled := append([]models.CatalogItem(nil), candidates...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled
	}
}

func ratingDesc(a, b models.CatalogItem) bool {
	ra, rb := -1.0, -1.0
	if a.Rating != nil {
		ra = *a.Rating
	}
	if b.Rating != nil {
		rb = *b.Rating
	}
	if ra != rb {
		return ra > rb
	}
	// Stable tiebreak so identical inputs rank identically.
	return a.ID.String() < b.ID.String()
}

func sortedBy(items []models.CatalogItem, less func(a, b models.CatalogItem) bool) []models.CatalogItem {
	out := append([]models.CatalogItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func filterItems(items []models.CatalogItem, keep func(models.CatalogItem) bool) []models.CatalogItem {
	var out []models.CatalogItem
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
