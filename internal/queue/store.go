package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guildest/guildcore/internal/logger"
)

// Store is the shared queue contract: a namespaced FIFO of pending jobs plus
// ephemeral per-job result slots with expiry. Redis is the production backend;
// an in-memory implementation satisfies the same contract for single-process
// fallback and tests.
type Store interface {
	// Push atomically appends the job to the tail of the pending list.
	Push(ctx context.Context, job *Job) error

	// Pop atomically removes and returns the head job, blocking up to
	// timeout. It returns (nil, nil) when the queue stayed empty so callers
	// can loop and re-check liveness.
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)

	// PutResult writes the job's result slot, overwriting any prior value,
	// and schedules expiry after ttl.
	PutResult(ctx context.Context, jobID string, result *Result, ttl time.Duration) error

	// GetResult returns the slot's current value, or (nil, nil) when the
	// slot expired or was never written. It does not block.
	GetResult(ctx context.Context, jobID string) (*Result, error)

	// Depth reports the number of pending jobs in the namespace.
	Depth(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open selects the queue backend once at startup: Redis when reachable, the
// in-memory store otherwise. Both satisfy the same contract, so callers never
// learn which one is active.
func Open(ctx context.Context, opts *redis.Options, namespace string) Store {
	store, err := NewRedisStore(ctx, opts, namespace)
	if err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("addr", opts.Addr).
			Msg("Redis unreachable, falling back to in-memory queue")
		return NewMemoryStore(namespace)
	}
	logger.Logger.Info().
		Str("addr", opts.Addr).
		Str("namespace", namespace).
		Msg("Connected to Redis queue backend")
	return store
}
