package config

import (
	"database/sql"
	"log"
	"os"
	"strconv"
)

type Config struct {
	Port          int
	DatabasePath  string
	DataDir       string
	PolicySource  string // file path or http(s) URL
	TMDBAPIKey    string
	TMDBToken     string // v4 bearer token; used when set, api key otherwise
	RedisAddr     string
	WebhookSecret string
	HeroEnabled   *bool // nil = not overridden
}

func Load() *Config {
	return &Config{
		Port:          envInt("PORT", 8080),
		DatabasePath:  env("DATABASE_PATH", "data/marquee.db"),
		DataDir:       env("DATA_DIR", "data"),
		PolicySource:  env("HERO_POLICY_SOURCE", "hero-policy.json"),
		TMDBAPIKey:    env("TMDB_API_KEY", ""),
		TMDBToken:     env("TMDB_ACCESS_TOKEN", ""),
		RedisAddr:     env("REDIS_ADDR", ""),
		WebhookSecret: env("WEBHOOK_SECRET", ""),
		HeroEnabled:   envBool("HERO_ENABLED"),
	}
}

// MergeFromDB overlays persisted settings on top of env values. Env wins for
// the feature-flag override; everything else prefers the stored value.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "tmdb_api_key":
			if c.TMDBAPIKey == "" {
				c.TMDBAPIKey = value
			}
		case "tmdb_access_token":
			if c.TMDBToken == "" {
				c.TMDBToken = value
			}
		case "policy_source":
			if value != "" {
				c.PolicySource = value
			}
		case "webhook_secret":
			if c.WebhookSecret == "" {
				c.WebhookSecret = value
			}
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string) *bool {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
