package server

import (
	"net/http"
	"time"
)

// handleLive implements GET /api/health/live: process is up, no
// dependency checks, per spec.md §6.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady implements GET /api/health/ready: ready iff Redis is up,
// Postgres is up, and at least one provider is healthy (breaker CLOSED),
// per spec.md §6.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}

	redisOK := s.cache.HealthCheck(r.Context()) == nil
	services["redis"] = statusString(redisOK)

	dbOK := true
	if s.store != nil {
		dbOK = s.store.HealthCheck(r.Context()) == nil
	}
	services["postgres"] = statusString(dbOK)

	anyProviderHealthy := false
	for _, shell := range s.fleet.Shells {
		if shell.Enabled() && shell.Breaker().IsHealthy() {
			anyProviderHealthy = true
			break
		}
	}
	services["providers"] = statusString(anyProviderHealthy)

	if redisOK && dbOK && anyProviderHealthy {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "services": services})
}

// handleHealth implements GET /api/health: an overall status cascade of
// healthy/degraded/unhealthy, per spec.md §6.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}

	redisOK := s.cache.HealthCheck(r.Context()) == nil
	services["redis"] = statusString(redisOK)

	dbOK := true
	if s.store != nil {
		dbOK = s.store.HealthCheck(r.Context()) == nil
	}
	services["postgres"] = statusString(dbOK)

	healthyProviders := 0
	for _, shell := range s.fleet.Shells {
		if shell.Enabled() && shell.Breaker().IsHealthy() {
			healthyProviders++
		}
	}
	services["providers"] = statusString(healthyProviders > 0)

	status := "healthy"
	switch {
	case !redisOK && !dbOK:
		status = "unhealthy"
	case !redisOK || !dbOK || healthyProviders == 0:
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"version":   "1.0.0",
		"uptime":    time.Since(s.startedAt).String(),
		"timestamp": time.Now().UTC(),
		"services":  services,
	})
}

func statusString(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
