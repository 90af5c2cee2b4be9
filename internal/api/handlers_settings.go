package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settingsRepo.GetAll()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: all})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for key, value := range updates {
		if value == "" {
			if err := s.settingsRepo.Delete(key); err != nil {
				s.respondError(w, http.StatusInternalServerError, "failed to delete setting "+key)
				return
			}
			continue
		}
		if err := s.settingsRepo.Set(key, value); err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to save setting "+key)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]int{"updated": len(updates)}})
}
