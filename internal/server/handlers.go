package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "noteengine",
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Database health check failed")
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response["database"] = s.db.Name()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListJobs handles GET /api/system/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.jobs != nil {
		names = append(names, s.jobs.Jobs()...)
	}
	sort.Strings(names)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// handleRunJob handles POST /api/system/jobs/{name}/run
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.jobs == nil || !contains(s.jobs.Jobs(), name) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}

	start := time.Now()
	if err := s.jobs.RunNow(name); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"job": name, "status": "failed", "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
