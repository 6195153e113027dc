package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/queue"
)

// Dispatcher builds job records and pushes them onto the shared queue. It
// never waits for the outcome; pair it with a Waiter when one is needed.
type Dispatcher struct {
	store queue.Store
}

func NewDispatcher(store queue.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch enqueues one job and returns its correlation id immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, jobType string, payload any, requestedBy string, resultTTL time.Duration) (string, error) {
	if jobType == "" {
		return "", &queue.ValidationError{Field: "job_type", Reason: "cannot be empty"}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &queue.SerializationError{Op: "encode payload", Err: err}
	}

	job := &queue.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     data,
		RequestedBy: requestedBy,
		ResultTTL:   int(resultTTL / time.Second),
		EnqueuedAt:  time.Now().UTC(),
	}

	if err := d.store.Push(ctx, job); err != nil {
		return "", err
	}

	metrics.JobsDispatchedTotal.Inc()
	log := logger.WithJobID(job.ID)
	log.Info().Str("type", job.Type).Str("requested_by", requestedBy).Msg("Job dispatched")
	return job.ID, nil
}
