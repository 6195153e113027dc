package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guildest/guildcore/internal/gateway"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/ws"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

func AddRoutes(mux *http.ServeMux, gw *gateway.Gateway, store queue.Store, hub *ws.Hub) {
	mux.HandleFunc("/v1/events", correlationMiddleware(handleEvents(gw)))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.HandleWebSocket(hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", HandleHealth("gateway"))
	mux.HandleFunc("/readyz", HandleReadiness("gateway", store))
}

func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), correlationKey, correlationID)
		next(w, r.WithContext(ctx))
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

func handleEvents(gw *gateway.Gateway) http.HandlerFunc {
	type eventRequest struct {
		GroupID string `json:"group_id"`
		ActorID string `json:"actor_id"`
		Content string `json:"content"`
	}

	type eventResponse struct {
		Accepted bool   `json:"accepted"`
		At       string `json:"at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		log := logger.WithCorrelationID(getCorrelationID(r.Context()))

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error().Err(err).Msg("Invalid JSON request")
			http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.GroupID == "" || req.ActorID == "" {
			log.Warn().Msg("Event missing group_id or actor_id")
			http.Error(w, "group_id and actor_id are required", http.StatusBadRequest)
			return
		}

		now := time.Now()
		gw.HandleMessage(r.Context(), gateway.Event{
			GroupID: req.GroupID,
			ActorID: req.ActorID,
			Content: req.Content,
			At:      now,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(eventResponse{
			Accepted: true,
			At:       now.Format(time.RFC3339),
		}); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
		}
	}
}
