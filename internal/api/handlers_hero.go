package api

import (
	"fmt"
	"net/http"

	"marquee/internal/hero"
	"marquee/internal/models"
	"marquee/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"status": "ok"},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ver := version.Load()
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"version":    ver.Version,
			"policyHash": s.loader.CurrentHash(),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleGetHero(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseMediaKind(r.PathValue("kind"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown media kind "+r.PathValue("kind"))
		return
	}

	forceParam := r.URL.Query().Get("force")
	force := forceParam == "1" || forceParam == "true"
	result, err := s.orch.GetPool(r.Context(), kind, hero.GetOptions{Force: force})
	if err == hero.ErrDisabled {
		s.respondError(w, http.StatusServiceUnavailable, "hero pipeline disabled")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("hero pool unavailable: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

func (s *Server) handleHeroDebug(w http.ResponseWriter, r *http.Request) {
	if _, ok := models.ParseMediaKind(r.PathValue("kind")); !ok {
		s.respondError(w, http.StatusBadRequest, "unknown media kind "+r.PathValue("kind"))
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: s.orch.Snapshot()})
}

func (s *Server) handleHeroRebuild(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseMediaKind(r.PathValue("kind"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown media kind "+r.PathValue("kind"))
		return
	}
	if err := s.rebuild(kind); err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue rebuild: %v", err))
		return
	}
	s.respondJSON(w, http.StatusAccepted, Response{
		Success: true,
		Data:    map[string]string{"kind": string(kind), "status": "queued"},
	})
}
