package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open connects to (or creates) the SQLite database and applies the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// Writes are serialized through one connection; SQLite locks whole-file.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{sqlDB}
	if err := d.migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS catalog_items (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	tagline     TEXT,
	summary     TEXT,
	year        INTEGER,
	rating      REAL,
	genres      TEXT NOT NULL DEFAULT '[]',
	duration_ms INTEGER,
	tmdb_id     TEXT,
	imdb_id     TEXT,
	thumb_path  TEXT,
	added_at    DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_items_kind ON catalog_items(kind);
CREATE INDEX IF NOT EXISTS idx_catalog_items_added ON catalog_items(added_at DESC);

CREATE TABLE IF NOT EXISTS catalog_seasons (
	item_id       TEXT NOT NULL REFERENCES catalog_items(id) ON DELETE CASCADE,
	season_number INTEGER NOT NULL,
	episode_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (item_id, season_number)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hero_pools (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS enrich_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);
`
