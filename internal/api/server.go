package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/db"
	"marquee/internal/hero"
	"marquee/internal/models"
	"marquee/internal/policy"
	"marquee/internal/settings"
)

// RebuildTrigger enqueues or runs an async pool rebuild for a kind. Wired to
// the job queue when Redis is configured, a direct goroutine otherwise.
type RebuildTrigger func(kind models.MediaKind) error

type Server struct {
	config       *config.Config
	db           *db.DB
	catalogRepo  *catalog.Repository
	settingsRepo *settings.Repository
	loader       *policy.Loader
	orch         *hero.Orchestrator
	rebuild      RebuildTrigger
	wsHub        *WSHub
	router       *http.ServeMux
	handler      http.Handler
	readLimiter  *rate.Limiter
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, database *db.DB, loader *policy.Loader, orch *hero.Orchestrator, rebuild RebuildTrigger) *Server {
	s := &Server{
		config:       cfg,
		db:           database,
		catalogRepo:  catalog.NewRepository(database.DB),
		settingsRepo: settings.NewRepository(database.DB),
		loader:       loader,
		orch:         orch,
		rebuild:      rebuild,
		wsHub:        NewWSHub(),
		router:       http.NewServeMux(),
		readLimiter:  rate.NewLimiter(50, 100),
	}
	s.setupRoutes()
	// Global middleware: security headers → CORS → router
	s.handler = s.securityHeadersMiddleware(s.corsMiddleware(s.router))
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) SettingsRepo() *settings.Repository {
	return s.settingsRepo
}

func (s *Server) CatalogRepo() *catalog.Repository {
	return s.catalogRepo
}

func (s *Server) setupRoutes() {
	// Public
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/v1/status", s.handleStatus)

	// Hero pools
	s.router.HandleFunc("GET /api/v1/hero/{kind}", s.rlRead(s.handleGetHero))
	s.router.HandleFunc("GET /api/v1/hero/{kind}/debug", s.handleHeroDebug)
	s.router.HandleFunc("POST /api/v1/hero/{kind}/rebuild", s.handleHeroRebuild)

	// Policy
	s.router.HandleFunc("GET /api/v1/policy", s.handleGetPolicy)
	s.router.HandleFunc("POST /api/v1/policy/reload", s.handlePolicyReload)

	// Settings
	s.router.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	s.router.HandleFunc("PUT /api/v1/settings", s.handleUpdateSettings)

	// WebSocket
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	// Library ingest webhook (no auth — uses shared secret)
	s.router.HandleFunc("POST /api/v1/webhooks/library", s.handleLibraryWebhook)
}

// ──────────────────── Middleware ────────────────────

// rlRead throttles read endpoints that can trigger pool builds.
func (s *Server) rlRead(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.readLimiter.Allow() {
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// ──────────────────── Helpers ────────────────────

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, Response{Success: false, Error: message})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// securityHeadersMiddleware adds standard security headers to all responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Webhook-Secret, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
