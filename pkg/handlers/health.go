package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status string `json:"status"`
	Module string `json:"module,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler creates a generic health check handler for a given module
func HealthHandler(moduleName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Module: moduleName,
		})
	}
}

// Probe checks a single dependency. It should return quickly.
type Probe func(ctx context.Context) error

// HealthzHandler returns 200 only after every probe succeeds. Used for the
// service-level /healthz endpoint backed by database pings.
func HealthzHandler(probes ...Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, probe := range probes {
			if err := probe(ctx); err != nil {
				writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
					Status: "unhealthy",
					Error:  err.Error(),
				})
				return
			}
		}

		writeHealth(w, http.StatusOK, HealthResponse{Status: "healthy"})
	}
}

func writeHealth(w http.ResponseWriter, code int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}
