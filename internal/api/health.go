package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/guildest/guildcore/internal/queue"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

type ReadinessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Queue     string    `json:"queue"`
}

func HandleHealth(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Service:   service,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// HandleReadiness reports ready only while the queue backend answers pings.
func HandleReadiness(service string, store queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		queueStatus := "connected"
		status := "ready"
		code := http.StatusOK

		if err := store.Ping(r.Context()); err != nil {
			queueStatus = "disconnected"
			status = "not ready"
			code = http.StatusServiceUnavailable
		}

		response := ReadinessResponse{
			Status:    status,
			Timestamp: time.Now(),
			Service:   service,
			Queue:     queueStatus,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}
