package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/metrics"
	"github.com/guildest/guildcore/internal/notify"
	"github.com/guildest/guildcore/internal/queue"
)

// StatusPublisher receives every terminal job outcome. notify.Publisher
// satisfies it; pools run fine without one.
type StatusPublisher interface {
	Publish(event notify.StatusEvent) error
}

// Pool runs competing-consumer loops against the shared queue. Each loop pops
// with a bounded timeout, dispatches to the registry, and publishes the
// outcome into the job's result slot. Multiple pools across processes scale
// throughput; the store's atomic pop is the only coordination point.
type Pool struct {
	store       queue.Store
	registry    *jobs.Registry
	status      StatusPublisher
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	workerCount int
	popTimeout  time.Duration
}

func NewPool(store queue.Store, registry *jobs.Registry, workerCount int, popTimeout time.Duration) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:       store,
		registry:    registry,
		ctx:         ctx,
		cancel:      cancel,
		workerCount: workerCount,
		popTimeout:  popTimeout,
	}
}

// SetStatusPublisher attaches an optional status plane. Call before Start.
func (p *Pool) SetStatusPublisher(pub StatusPublisher) {
	p.status = pub
}

// Start begins processing jobs with the configured number of workers.
func (p *Pool) Start() {
	logger.Logger.Info().
		Int("worker_count", p.workerCount).
		Strs("job_types", p.registry.Types()).
		Msg("Starting worker pool")
	metrics.ActiveWorkers.Add(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the worker pool.
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Sub(float64(p.workerCount))
	logger.Logger.Info().Msg("Worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	for {
		job, err := p.store.Pop(p.ctx, p.popTimeout)
		if p.ctx.Err() != nil {
			logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
			return
		}
		if err != nil {
			logger.Logger.Error().Int("worker_id", id).Err(err).Msg("Error popping job")
			// Back off so a dead backend doesn't spin the loop.
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if job == nil {
			continue // empty queue, re-check liveness
		}

		p.processJob(id, job)
	}
}

// processJob runs the handler and publishes its outcome, always using the
// job's own result TTL. Handler failures and panics become error results;
// they never crash the loop.
func (p *Pool) processJob(workerID int, job *queue.Job) {
	startTime := time.Now()
	logger.Logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Str("type", job.Type).
		Msg("Processing job")

	var result *queue.Result

	handler, ok := p.registry.Lookup(job.Type)
	if !ok {
		result = queue.NewErrorResult(job.ID, fmt.Sprintf("%v %q", queue.ErrHandlerNotFound, job.Type))
	} else {
		value, err := p.invoke(handler, job)
		if err != nil {
			execErr := &queue.HandlerExecutionError{JobType: job.Type, Err: err}
			result = queue.NewErrorResult(job.ID, execErr.Error())
		} else {
			okResult, encErr := queue.NewOKResult(job.ID, value)
			if encErr != nil {
				result = queue.NewErrorResult(job.ID, encErr.Error())
			} else {
				result = okResult
			}
		}
	}

	duration := time.Since(startTime)
	metrics.JobProcessingDuration.Observe(duration.Seconds())

	if result.OK() {
		metrics.JobsCompletedTotal.Inc()
		logger.Logger.Info().
			Int("worker_id", workerID).
			Str("job_id", job.ID).
			Dur("duration", duration).
			Msg("Job completed")
	} else {
		metrics.JobsFailedTotal.Inc()
		logger.Logger.Error().
			Int("worker_id", workerID).
			Str("job_id", job.ID).
			Str("error", result.Error).
			Msg("Job failed")
	}

	// Stop may have canceled the pool context while the handler ran; the
	// terminal result still publishes so a drained job is never lost.
	putCtx := context.WithoutCancel(p.ctx)
	if err := p.store.PutResult(putCtx, job.ID, result, job.TTL()); err != nil {
		logger.Logger.Error().
			Int("worker_id", workerID).
			Str("job_id", job.ID).
			Err(err).
			Msg("Failed to publish result")
	}

	if p.status != nil {
		event := notify.StatusEvent{
			JobID:      job.ID,
			JobType:    job.Type,
			Status:     string(result.Status),
			Error:      result.Error,
			DurationMS: float64(duration.Milliseconds()),
		}
		if err := p.status.Publish(event); err != nil {
			logger.Logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to publish status event")
		}
	}
}

func (p *Pool) invoke(handler jobs.Handler, job *queue.Job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(p.ctx, job.Payload)
}
