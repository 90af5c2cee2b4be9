package api

import (
	"net/http"
)

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"policy":     s.loader.Current(),
			"policyHash": s.loader.CurrentHash(),
			"issues":     s.loader.ValidationIssues(),
			"loadedAt":   s.loader.LoadedAt(),
		},
	})
}

// handlePolicyReload re-fetches the policy source. Pools built under the old
// hash become cache misses and rebuild lazily on the next request.
func (s *Server) handlePolicyReload(w http.ResponseWriter, r *http.Request) {
	before := s.loader.CurrentHash()
	s.loader.Load(r.Context())
	after := s.loader.CurrentHash()

	if before != after {
		s.wsHub.Broadcast("policy:reloaded", map[string]interface{}{
			"policyHash": after,
			"issues":     s.loader.ValidationIssues(),
		})
	}
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"policyHash": after,
			"changed":    before != after,
			"issues":     s.loader.ValidationIssues(),
		},
	})
}
