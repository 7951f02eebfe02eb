package httpserver

import (
	"net/http"
)

// handleHealth handles GET /health
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	n := 0
	if s.sessions != nil {
		n = len(s.sessions.List())
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Sessions: n,
	})
}
