package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/guildest/guildcore/internal/api"
	"github.com/guildest/guildcore/internal/config"
	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/llm"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/notify"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/worker"
)

func main() {
	godotenv.Load()
	logger.Init("worker")
	logger.Logger.Info().Msg("Starting worker")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	port := os.Getenv("WORKER_PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()

	store := queue.Open(ctx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	}, cfg.Queue.Namespace)
	defer store.Close()

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)

	registry := jobs.NewRegistry(map[string]jobs.Handler{
		"llm_reply":   llm.ReplyHandler(llmClient),
		"safety_scan": llm.SafetyHandler(llmClient),
	})

	pool := worker.NewPool(store, registry, cfg.Worker.Count, cfg.Queue.PopTimeout)

	var statusPub *notify.Publisher
	if cfg.NATS.Enabled {
		pub, err := notify.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		statusPub = pub
		pool.SetStatusPublisher(pub)
		logger.Logger.Info().Str("url", cfg.NATS.URL).Msg("Status publisher started")
	}

	pool.Start()

	stopDepth := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopDepth:
				return
			case <-ticker.C:
				if n, err := store.Depth(ctx); err == nil {
					metrics.PendingJobs.Set(float64(n))
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", api.HandleHealth("worker"))
	mux.HandleFunc("/readyz", api.HandleReadiness("worker", store))

	go func() {
		addr := fmt.Sprintf(":%s", port)
		logger.Logger.Info().Str("addr", addr).Msg("Worker HTTP server listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Worker HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	close(stopDepth)
	pool.Stop()
	if statusPub != nil {
		statusPub.Close()
	}
	logger.Logger.Info().Msg("Worker stopped")
}
