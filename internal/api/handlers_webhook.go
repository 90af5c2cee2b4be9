package api

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"marquee/internal/models"
)

type libraryWebhookPayload struct {
	EventType string               `json:"eventType"`
	Items     []models.CatalogItem `json:"items"`
}

// handleLibraryWebhook ingests catalog changes pushed by the media server.
// Added and updated items are upserted; each affected kind gets its pool
// invalidated and an async rebuild queued.
func (s *Server) handleLibraryWebhook(w http.ResponseWriter, r *http.Request) {
	if s.config.WebhookSecret == "" {
		s.respondError(w, http.StatusServiceUnavailable, "webhook ingest not configured")
		return
	}
	secret := r.Header.Get("X-Webhook-Secret")
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.WebhookSecret)) != 1 {
		s.respondError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	var payload libraryWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	now := time.Now()
	touched := make(map[models.MediaKind]bool)
	upserted := 0
	for i := range payload.Items {
		item := &payload.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
		item.UpdatedAt = now
		if _, ok := models.ParseMediaKind(string(item.Kind)); !ok {
			log.Printf("[webhook] skipping item %q: unknown kind %q", item.Title, item.Kind)
			continue
		}
		if err := s.catalogRepo.Upsert(r.Context(), *item); err != nil {
			log.Printf("[webhook] upsert %q failed: %v", item.Title, err)
			continue
		}
		touched[item.Kind] = true
		upserted++
	}

	for kind := range touched {
		if err := s.orch.Invalidate(r.Context(), kind); err != nil {
			log.Printf("[webhook] invalidate %s pool: %v", kind, err)
		}
		if err := s.rebuild(kind); err != nil {
			log.Printf("[webhook] queue %s rebuild: %v", kind, err)
		}
	}

	log.Printf("[webhook] %s: upserted %d items across %d kinds", payload.EventType, upserted, len(touched))
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int{"upserted": upserted, "kinds": len(touched)},
	})
}
