package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/guildest/guildcore/internal/gateway"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/ws"
)

type Server struct {
	gw    *gateway.Gateway
	store queue.Store
	hub   *ws.Hub
	port  string
}

func NewServer(gw *gateway.Gateway, store queue.Store, hub *ws.Hub, port string) *Server {
	return &Server{
		gw:    gw,
		store: store,
		hub:   hub,
		port:  port,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	logger.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	mux := http.NewServeMux()
	AddRoutes(mux, s.gw, s.store, s.hub)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}
