package jobs

import (
	"context"
	"time"

	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/queue"
)

const defaultPollInterval = 250 * time.Millisecond

// Waiter correlates one result back to the job that asked for it. It polls
// the store's result slot at a fixed granularity so a wait never overshoots
// its deadline by more than one poll interval.
type Waiter struct {
	store        queue.Store
	pollInterval time.Duration
}

func NewWaiter(store queue.Store, pollInterval time.Duration) *Waiter {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Waiter{store: store, pollInterval: pollInterval}
}

// Await blocks the calling goroutine until the job's result appears or
// timeout elapses. On timeout it logs the job id, counts it, and returns
// queue.ErrTimedOut; a result published later is left to expire unread.
// Transient store errors are logged and retried until the deadline.
func (w *Waiter) Await(ctx context.Context, jobID string, timeout time.Duration) (*queue.Result, error) {
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log := logger.WithJobID(jobID)

	for {
		result, err := w.store.GetResult(ctx, jobID)
		if err != nil {
			log.Warn().Err(err).Msg("Result poll failed, retrying")
		}
		if result != nil {
			return result, nil
		}

		if !time.Now().Before(deadline) {
			metrics.JobsTimedOutTotal.Inc()
			log.Warn().Dur("timeout", timeout).Msg("Gave up waiting for result")
			return nil, queue.ErrTimedOut
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
