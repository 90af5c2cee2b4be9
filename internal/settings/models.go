package settings

// Keys persisted in the settings table. Env vars with the same meaning take
// precedence at startup.
const (
	KeyHeroEnabled     = "hero_enabled"
	KeyTMDBAPIKey      = "tmdb_api_key"
	KeyTMDBAccessToken = "tmdb_access_token"
	KeyPolicySource    = "policy_source"
	KeyWebhookSecret   = "webhook_secret"
)
