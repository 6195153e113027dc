package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/llm"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/tracker"
)

// Event is one inbound chat message as seen by the gateway.
type Event struct {
	GroupID string    `json:"group_id"`
	ActorID string    `json:"actor_id"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Responder performs the user-visible follow-ups the gateway decides on.
// Moderation actions and message delivery live behind it; the gateway never
// talks to the chat platform directly.
type Responder interface {
	// SuppressMessage handles a rate-limited message. count is the
	// identity's in-window message count at suppression time.
	SuppressMessage(ctx context.Context, ev Event, count int) error

	// FlagMessage reports a message whose safety scan came back non-safe.
	FlagMessage(ctx context.Context, ev Event, verdict string) error

	// SendReply delivers a generated reply into the group's channel.
	SendReply(ctx context.Context, groupID, text string) error
}

// ActivityStore persists per-user message stats. Optional; a nil store means
// stats are not recorded.
type ActivityStore interface {
	RecordMessage(ctx context.Context, groupID, userID string, at time.Time) error
}

// Budgets are the caller-side wait and TTL settings per job class.
type Budgets struct {
	SafetyWait time.Duration
	SafetyTTL  time.Duration
	LLMWait    time.Duration
	LLMTTL     time.Duration
}

// Gateway evaluates the cheap per-message signals inline and hands expensive
// work to the queue. HandleMessage never blocks on background jobs and never
// fails the inbound path: a dead queue backend degrades to a logged skip.
type Gateway struct {
	rates      *tracker.RateTracker
	activity   *tracker.ActivityDetector
	dispatcher *jobs.Dispatcher
	waiter     *jobs.Waiter
	responder  Responder
	store      ActivityStore
	budgets    Budgets

	wg sync.WaitGroup
}

func New(
	rates *tracker.RateTracker,
	activity *tracker.ActivityDetector,
	dispatcher *jobs.Dispatcher,
	waiter *jobs.Waiter,
	responder Responder,
	store ActivityStore,
	budgets Budgets,
) *Gateway {
	return &Gateway{
		rates:      rates,
		activity:   activity,
		dispatcher: dispatcher,
		waiter:     waiter,
		responder:  responder,
		store:      store,
		budgets:    budgets,
	}
}

// HandleMessage runs the synchronous signal checks for one event and spawns
// background tasks for anything expensive.
func (g *Gateway) HandleMessage(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	metrics.MessagesProcessedTotal.Inc()

	over, count := g.rates.Check(ev.ActorID, ev.At)
	if over {
		metrics.SpamTriggersTotal.Inc()
		if g.responder != nil {
			if err := g.responder.SuppressMessage(ctx, ev, count); err != nil {
				logger.WithEvent(ev.GroupID, ev.ActorID).Error().Err(err).Msg("Suppress failed")
			}
		}
		// A suppressed message earns nothing further: no safety scan, no
		// activity stats, no engagement.
		return
	}

	// Background tasks must outlive the inbound request.
	bgCtx := context.WithoutCancel(ctx)

	if strings.TrimSpace(ev.Content) != "" {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.runSafetyScan(bgCtx, ev)
		}()
	}

	if g.store != nil {
		if err := g.store.RecordMessage(ctx, ev.GroupID, ev.ActorID, ev.At); err != nil {
			logger.WithEvent(ev.GroupID, ev.ActorID).Error().Err(err).Msg("Failed to record activity")
		}
	}

	if g.activity.Record(ev.GroupID, ev.ActorID, ev.At) {
		metrics.EngageTriggersTotal.Inc()
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.runReply(bgCtx, ev)
		}()
	}
}

// Wait blocks until all in-flight background tasks finish. Used on shutdown.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) runSafetyScan(ctx context.Context, ev Event) {
	payload := llm.ScanRequest{
		Content:  ev.Content,
		GroupID:  ev.GroupID,
		AuthorID: ev.ActorID,
	}

	jobID, err := g.dispatcher.Dispatch(ctx, "safety_scan", payload, ev.ActorID, g.budgets.SafetyTTL)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Safety scan dispatch failed, skipping")
		return
	}

	result, err := g.waiter.Await(ctx, jobID, g.budgets.SafetyWait)
	if err != nil {
		if !errors.Is(err, queue.ErrTimedOut) {
			logger.WithJobID(jobID).Warn().Err(err).Msg("Safety scan wait failed")
		}
		return
	}
	if !result.OK() {
		logger.WithJobID(jobID).Warn().Str("error", result.Error).Msg("Safety scan errored")
		return
	}

	var verdict llm.ScanResponse
	if err := json.Unmarshal(result.Value, &verdict); err != nil {
		logger.WithJobID(jobID).Warn().Err(err).Msg("Unreadable safety verdict")
		return
	}

	if verdict.Verdict != "" && !strings.EqualFold(verdict.Verdict, "safe") {
		if g.responder != nil {
			if err := g.responder.FlagMessage(ctx, ev, verdict.Verdict); err != nil {
				logger.WithJobID(jobID).Error().Err(err).Msg("Flag delivery failed")
			}
		}
	}
}

func (g *Gateway) runReply(ctx context.Context, ev Event) {
	payload := llm.ReplyRequest{
		Prompt:   ev.Content,
		Username: ev.ActorID,
		GroupID:  ev.GroupID,
	}

	jobID, err := g.dispatcher.Dispatch(ctx, "llm_reply", payload, ev.ActorID, g.budgets.LLMTTL)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Reply dispatch failed, skipping")
		return
	}

	result, err := g.waiter.Await(ctx, jobID, g.budgets.LLMWait)
	if err != nil {
		if !errors.Is(err, queue.ErrTimedOut) {
			logger.WithJobID(jobID).Warn().Err(err).Msg("Reply wait failed")
		}
		return
	}
	if !result.OK() {
		logger.WithJobID(jobID).Warn().Str("error", result.Error).Msg("Reply job errored")
		return
	}

	var reply llm.ReplyResponse
	if err := json.Unmarshal(result.Value, &reply); err != nil {
		logger.WithJobID(jobID).Warn().Err(err).Msg("Unreadable reply value")
		return
	}
	if reply.Reply == "" {
		return
	}

	if g.responder != nil {
		if err := g.responder.SendReply(ctx, ev.GroupID, reply.Reply); err != nil {
			logger.WithJobID(jobID).Error().Err(err).Msg("Reply delivery failed")
		}
	}
}
