// Package api provides the JSON and health endpoints of the room board
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthResponse represents the response for health check endpoints
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Pinger is anything the board cannot serve without, such as the Redis store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLiveHandler answers Kubernetes liveness checks
func HealthLiveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

// HealthReadyHandler answers Kubernetes readiness checks.
// The board is ready when every dependency answers a ping.
func HealthReadyHandler(log logrus.FieldLogger, deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				log.WithError(err).Warn("Readiness check failed")
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "DOWN", Error: "dependency unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
