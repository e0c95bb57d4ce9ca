// ABOUTME: Admin HTTP endpoints for health checks and operational cache reset
// ABOUTME: Exposes GET /health and POST /cache/reset on the admin address

package server

import (
	"encoding/json"
	"net/http"
)

// adminHandler builds the admin endpoint mux.
func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/cache/reset", s.handleCacheReset)
	return mux
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCacheReset clears all cached authentication decisions. Intended for
// operational use after backend credential rotation; takes no arguments and
// returns a bare acknowledgment.
func (s *Server) handleCacheReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.coord.Reset()
	s.logger.Info("cache reset requested", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}
