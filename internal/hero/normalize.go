// Package hero builds, caches, and serves the featured ("hero") rotation
// for each media kind.
package hero

import (
	"fmt"

	"marquee/internal/metadata"
	"marquee/internal/models"
	"marquee/internal/policy"
)

// NormalizeItem merges a catalog item with optional enrichment detail into
// the canonical hero shape. Enrichment text wins when non-empty; every text
// field is clamped to the policy limits. Never fails: missing data degrades
// to zero values.
func NormalizeItem(item models.CatalogItem, detail *metadata.EnrichedDetail, pol policy.Policy) models.HeroItem {
	h := models.HeroItem{
		ID:     item.ID.String(),
		Source: "catalog",
		IDs:    map[string]string{"local": item.ID.String()},
	}

	ctaKind := "movie"
	h.Type = "movie"
	if item.Kind == models.KindSeries {
		ctaKind = "show"
		h.Type = "tv"
	}
	// CTA always targets the local catalog identity so navigation works
	// even when enrichment is down.
	h.CTA = models.CTA{
		Kind:   ctaKind,
		ID:     item.ID.String(),
		Target: fmt.Sprintf("#/%s/%s", ctaKind, item.ID.String()),
	}

	if item.TMDBID != nil && *item.TMDBID != "" {
		h.IDs["tmdb"] = *item.TMDBID
	}
	if item.IMDBID != nil && *item.IMDBID != "" {
		h.IDs["imdb"] = *item.IMDBID
	}

	h.Title = clampText(firstNonEmpty(detailTitle(detail), item.Title), pol.TextClamp.Title)
	h.Tagline = clampText(firstNonEmpty(detailTagline(detail), strOrEmpty(item.Tagline)), pol.TextClamp.Subtitle)
	h.Overview = clampText(firstNonEmpty(detailOverview(detail), strOrEmpty(item.Summary)), pol.TextClamp.Summary)

	if item.Year != nil {
		h.Year = *item.Year
	}
	if item.Rating != nil {
		h.Rating = *item.Rating
	}
	if item.DurationMs != nil && *item.DurationMs > 0 {
		h.RuntimeMin = int(*item.DurationMs / 60000)
	}
	h.Genres = dedupe(item.Genres)
	if item.ThumbPath != nil && *item.ThumbPath != "" {
		h.Backdrops = []string{*item.ThumbPath}
	}
	if item.Kind == models.KindSeries {
		h.SeasonCount = len(item.Seasons)
		for _, s := range item.Seasons {
			h.EpisodeCount += s.EpisodeCount
		}
	}

	if detail == nil {
		return h
	}

	h.Source = "tmdb"
	if detail.ID != "" {
		h.IDs["tmdb"] = detail.ID
	}
	if detail.IMDBID != "" {
		h.IDs["imdb"] = detail.IMDBID
	}
	if detail.Year > 0 {
		h.Year = detail.Year
	}
	if detail.RuntimeMin > 0 {
		h.RuntimeMin = detail.RuntimeMin
	}
	if detail.Rating > 0 {
		h.Rating = detail.Rating
	}
	if detail.VoteCount > 0 {
		h.VoteCount = detail.VoteCount
	}
	if len(detail.Genres) > 0 {
		h.Genres = dedupe(detail.Genres)
	}
	if detail.Certification != "" {
		h.Certification = detail.Certification
	}
	if len(detail.Backdrops) > 0 {
		h.Backdrops = detail.Backdrops
	}
	if item.Kind == models.KindSeries {
		if detail.SeasonCount > 0 {
			h.SeasonCount = detail.SeasonCount
		}
		if detail.EpisodeCount > 0 {
			h.EpisodeCount = detail.EpisodeCount
		}
	}
	return h
}

func detailTitle(d *metadata.EnrichedDetail) string {
	if d == nil {
		return ""
	}
	return d.Title
}

func detailTagline(d *metadata.EnrichedDetail) string {
	if d == nil {
		return ""
	}
	return d.Tagline
}

func detailOverview(d *metadata.EnrichedDetail) string {
	if d == nil {
		return ""
	}
	return d.Overview
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// clampText is a hard character-count truncation (by rune, so multi-byte
// titles don't get split mid-character).
func clampText(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func dedupe(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(genres))
	var out []string
	for _, g := range genres {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
