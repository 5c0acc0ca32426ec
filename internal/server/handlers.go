package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// handleHealth handles health check requests. ?deep=1 adds an integrity check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":   "healthy",
		"version":  "1.0.0",
		"service":  "hxzfactors",
		"database": "ok",
	}
	status := http.StatusOK

	if s.db != nil {
		check, timeout := s.db.QuickCheck, 2*time.Second
		if deep, _ := strconv.ParseBool(r.URL.Query().Get("deep")); deep {
			check, timeout = s.db.HealthCheck, 30*time.Second
			response["check"] = "integrity"
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := check(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Database health check failed")
			response["status"] = "degraded"
			response["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
