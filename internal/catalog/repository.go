// Package catalog is the hero subsystem's read-side view of the media
// library. The library itself is owned elsewhere; this repository only
// lists and fetches items, plus an upsert used by the ingest webhook and
// test fixtures.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marquee/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, kind, title, tagline, summary, year, rating, genres,
	duration_ms, tmdb_id, imdb_id, thumb_path, added_at, updated_at`

// ListByKind returns every catalog item of a kind, newest first.
func (r *Repository) ListByKind(ctx context.Context, kind models.MediaKind) ([]models.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE kind = ? ORDER BY added_at DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if kind == models.KindSeries {
		if err := r.attachSeasons(ctx, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// GetByID fetches a single item, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE id = ?`, id.String())
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if item.Kind == models.KindSeries {
		items := []models.CatalogItem{*item}
		if err := r.attachSeasons(ctx, items); err != nil {
			return nil, err
		}
		item = &items[0]
	}
	return item, nil
}

// Upsert inserts or replaces an item and its season rows.
func (r *Repository) Upsert(ctx context.Context, item models.CatalogItem) error {
	genres, err := json.Marshal(item.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres: %w", err)
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	item.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_items (id, kind, title, tagline, summary, year, rating, genres,
			duration_ms, tmdb_id, imdb_id, thumb_path, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			tagline = excluded.tagline,
			summary = excluded.summary,
			year = excluded.year,
			rating = excluded.rating,
			genres = excluded.genres,
			duration_ms = excluded.duration_ms,
			tmdb_id = excluded.tmdb_id,
			imdb_id = excluded.imdb_id,
			thumb_path = excluded.thumb_path,
			updated_at = excluded.updated_at`,
		item.ID.String(), string(item.Kind), item.Title, item.Tagline, item.Summary,
		item.Year, item.Rating, string(genres), item.DurationMs,
		item.TMDBID, item.IMDBID, item.ThumbPath, item.AddedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert catalog item %s: %w", item.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_seasons WHERE item_id = ?`, item.ID.String()); err != nil {
		return err
	}
	for _, s := range item.Seasons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_seasons (item_id, season_number, episode_count) VALUES (?, ?, ?)`,
			item.ID.String(), s.Number, s.EpisodeCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountByKind reports how many items exist for a kind.
func (r *Repository) CountByKind(ctx context.Context, kind models.MediaKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_items WHERE kind = ?`, string(kind)).Scan(&n)
	return n, err
}

func (r *Repository) attachSeasons(ctx context.Context, items []models.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*models.CatalogItem, len(items))
	for i := range items {
		byID[items[i].ID.String()] = &items[i]
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, season_number, episode_count FROM catalog_seasons ORDER BY item_id, season_number`)
	if err != nil {
		return fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID string
		var season models.CatalogSeason
		if err := rows.Scan(&itemID, &season.Number, &season.EpisodeCount); err != nil {
			return err
		}
		if item, ok := byID[itemID]; ok {
			item.Seasons = append(item.Seasons, season)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.CatalogItem, error) {
	var (
		item    models.CatalogItem
		id      string
		kind    string
		genres  string
	)
	err := row.Scan(&id, &kind, &item.Title, &item.Tagline, &item.Summary,
		&item.Year, &item.Rating, &genres, &item.DurationMs,
		&item.TMDBID, &item.IMDBID, &item.ThumbPath, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("catalog item has malformed id %q: %w", id, err)
	}
	item.ID = parsed
	item.Kind = models.MediaKind(kind)
	if genres != "" {
		// A malformed genres blob degrades to no genres rather than failing
		// the whole listing.
		_ = json.Unmarshal([]byte(genres), &item.Genres)
	}
	return &item, nil
}
