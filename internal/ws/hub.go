package ws

import (
	"encoding/json"

	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/notify"
)

// Hub fans job status events out to connected dashboard clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Logger.Debug().Msg("Websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Logger.Debug().Msg("Websocket client disconnected")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stalling the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a raw frame for every connected client.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.Logger.Warn().Msg("Websocket broadcast buffer full, dropping frame")
	}
}

// BroadcastStatus sends one job status event to all clients.
func (h *Hub) BroadcastStatus(event notify.StatusEvent) {
	message, err := json.Marshal(map[string]any{
		"type": "job_status",
		"data": event,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to marshal status frame")
		return
	}
	h.Broadcast(message)
}
