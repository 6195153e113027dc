package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/guildest/guildcore/internal/api"
	"github.com/guildest/guildcore/internal/config"
	"github.com/guildest/guildcore/internal/db"
	"github.com/guildest/guildcore/internal/gateway"
	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/notify"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/tracker"
	"github.com/guildest/guildcore/internal/ws"
)

// logResponder stands in for the chat platform integration. It records what
// the gateway decided; a deployment swaps in a real platform client.
type logResponder struct{}

func (logResponder) SuppressMessage(ctx context.Context, ev gateway.Event, count int) error {
	logger.Logger.Warn().
		Str("group", ev.GroupID).
		Str("actor", ev.ActorID).
		Int("count", count).
		Msg("Message suppressed by rate tracker")
	return nil
}

func (logResponder) FlagMessage(ctx context.Context, ev gateway.Event, verdict string) error {
	logger.Logger.Warn().
		Str("group", ev.GroupID).
		Str("actor", ev.ActorID).
		Str("verdict", verdict).
		Msg("Message flagged by safety scan")
	return nil
}

func (logResponder) SendReply(ctx context.Context, groupID, text string) error {
	logger.Logger.Info().
		Str("group", groupID).
		Int("len", len(text)).
		Msg("Reply ready for delivery")
	return nil
}

func main() {
	godotenv.Load()
	logger.Init("gateway")
	logger.Logger.Info().Msg("Starting gateway")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	store := queue.Open(ctx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	}, cfg.Queue.Namespace)
	defer store.Close()

	dispatcher := jobs.NewDispatcher(store)
	waiter := jobs.NewWaiter(store, cfg.Queue.PollInterval)

	rates := tracker.NewRateTracker(cfg.Tracker.SpamWindow, cfg.Tracker.SpamThreshold)
	activity := tracker.NewActivityDetector(tracker.ActivityConfig{
		Retention:     cfg.Tracker.ChatWindow,
		ActiveWindow:  cfg.Tracker.ChatActiveWindow,
		MinMessages:   cfg.Tracker.ChatMinMessages,
		MinActors:     cfg.Tracker.ChatMinActors,
		Cooldown:      cfg.Tracker.ChatCooldown,
		TriggerChance: cfg.Tracker.ChatChance,
	})

	var activityStore gateway.ActivityStore
	if cfg.Postgres.DSN != "" {
		database, err := db.Connect(cfg.Postgres.DSN)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		if err := db.RunMigrations(database, cfg.Postgres.MigrationsDir); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		activityStore = db.NewStore(database)
	} else {
		logger.Logger.Info().Msg("No Postgres DSN configured, user activity persistence disabled")
	}

	gw := gateway.New(rates, activity, dispatcher, waiter, logResponder{}, activityStore, gateway.Budgets{
		SafetyWait: cfg.Wait.SafetyScan,
		SafetyTTL:  cfg.Wait.SafetyScanTTL,
		LLMWait:    cfg.Wait.LLMReply,
		LLMTTL:     cfg.Wait.LLMReplyTTL,
	})

	hub := ws.NewHub()
	go hub.Run()

	var statusSub *notify.Subscriber
	if cfg.NATS.Enabled {
		sub, err := notify.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		if err := sub.Subscribe(hub.BroadcastStatus); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to status events")
		}
		statusSub = sub
		logger.Logger.Info().Str("url", cfg.NATS.URL).Msg("Status subscriber started")
	}

	stopBackground := make(chan struct{})
	go func() {
		reap := time.NewTicker(cfg.Tracker.ReapInterval)
		depth := time.NewTicker(10 * time.Second)
		defer reap.Stop()
		defer depth.Stop()
		for {
			select {
			case <-stopBackground:
				return
			case now := <-reap.C:
				removed := rates.Reap(now, cfg.Tracker.ReapIdle) + activity.Reap(now, cfg.Tracker.ReapIdle)
				if removed > 0 {
					logger.Logger.Debug().Int("removed", removed).Msg("Reaped idle tracker state")
				}
			case <-depth.C:
				if n, err := store.Depth(ctx); err == nil {
					metrics.PendingJobs.Set(float64(n))
				}
			}
		}
	}()

	server := api.NewServer(gw, store, hub, cfg.HTTP.Port)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	close(stopBackground)
	gw.Wait()
	if statusSub != nil {
		statusSub.Close()
	}
	hub.Stop()
	logger.Logger.Info().Msg("Gateway stopped")
}
