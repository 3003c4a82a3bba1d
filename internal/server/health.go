// health.go - Dependency health endpoint.
//
// Pings the record store and blob storage and reports per-component
// status and latency. Failure details are logged, never returned.
package server

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// ComponentHealth is the state of one dependency.
type ComponentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms"`
}

// healthResponse is the /health body. Status is "ok" or "unhealthy".
type healthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// handleHealth pings every configured dependency with a two second
// timeout each. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, len(s.checks)),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		start := time.Now()
		err := s.checks[name].Ping(ctx)
		cancel()

		c := ComponentHealth{Status: "up", LatencyMs: float64(time.Since(start).Microseconds()) / 1000}
		if err != nil {
			c.Status = "down"
			c.Message = "unreachable"
			resp.Status = "unhealthy"
			s.logger.WarnContext(r.Context(), "health check failed", "component", name, "err", err)
		}
		resp.Components[name] = c
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
