package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/notify"
	"github.com/guildest/guildcore/internal/queue"
)

func TestMain(m *testing.M) {
	logger.Init("worker-test")
	os.Exit(m.Run())
}

func testRegistry() *jobs.Registry {
	return jobs.NewRegistry(map[string]jobs.Handler{
		"echo": func(ctx context.Context, payload json.RawMessage) (any, error) {
			var req map[string]string
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, err
			}
			return map[string]string{"echo": req["text"]}, nil
		},
		"fail": func(ctx context.Context, payload json.RawMessage) (any, error) {
			return nil, errors.New("simulated failure")
		},
		"panic": func(ctx context.Context, payload json.RawMessage) (any, error) {
			panic("boom")
		},
	})
}

func awaitResult(t *testing.T, store queue.Store, jobID string) *queue.Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err := store.GetResult(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get result: %v", err)
		}
		if result != nil {
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no result published for %s", jobID)
	return nil
}

func dispatch(t *testing.T, store queue.Store, jobType string, payload any) string {
	t.Helper()
	id, err := jobs.NewDispatcher(store).Dispatch(context.Background(), jobType, payload, "tester", time.Minute)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	return id
}

func TestPoolPublishesOKResult(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 1, 100*time.Millisecond)
	pool.Start()
	defer pool.Stop()

	jobID := dispatch(t, store, "echo", map[string]string{"text": "hello"})

	result := awaitResult(t, store, jobID)
	if !result.OK() {
		t.Fatalf("expected ok result, got %+v", result)
	}

	var value map[string]string
	if err := json.Unmarshal(result.Value, &value); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if value["echo"] != "hello" {
		t.Fatalf("unexpected value: %v", value)
	}
}

func TestPoolPublishesHandlerError(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 1, 100*time.Millisecond)
	pool.Start()
	defer pool.Stop()

	jobID := dispatch(t, store, "fail", nil)

	result := awaitResult(t, store, jobID)
	if result.OK() {
		t.Fatalf("expected error result")
	}
	if !strings.Contains(result.Error, "simulated failure") {
		t.Fatalf("error detail lost: %s", result.Error)
	}
}

func TestPoolPublishesHandlerNotFound(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 1, 100*time.Millisecond)
	pool.Start()
	defer pool.Stop()

	jobID := dispatch(t, store, "mystery", nil)

	result := awaitResult(t, store, jobID)
	if result.OK() {
		t.Fatalf("expected error result for unknown type")
	}
	if !strings.Contains(result.Error, "no handler registered") {
		t.Fatalf("unexpected error detail: %s", result.Error)
	}
}

func TestPoolSurvivesHandlerPanic(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 1, 100*time.Millisecond)
	pool.Start()
	defer pool.Stop()

	panicID := dispatch(t, store, "panic", nil)
	result := awaitResult(t, store, panicID)
	if result.OK() || !strings.Contains(result.Error, "panicked") {
		t.Fatalf("expected panic captured as error result, got %+v", result)
	}

	// The loop is still alive and processes the next job.
	echoID := dispatch(t, store, "echo", map[string]string{"text": "after"})
	result = awaitResult(t, store, echoID)
	if !result.OK() {
		t.Fatalf("worker loop did not survive the panic: %+v", result)
	}
}

func TestPoolCompetingConsumersProcessAll(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 4, 100*time.Millisecond)
	pool.Start()
	defer pool.Stop()

	const jobCount = 40
	ids := make([]string, 0, jobCount)
	for i := 0; i < jobCount; i++ {
		ids = append(ids, dispatch(t, store, "echo", map[string]string{"text": fmt.Sprintf("m%d", i)}))
	}

	for _, id := range ids {
		result := awaitResult(t, store, id)
		if !result.OK() {
			t.Fatalf("job %s failed: %+v", id, result)
		}
	}
}

type captureStatus struct {
	mu     sync.Mutex
	events []notify.StatusEvent
}

func (c *captureStatus) Publish(event notify.StatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureStatus) snapshot() []notify.StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.StatusEvent(nil), c.events...)
}

func TestPoolPublishesStatusEvents(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	capture := &captureStatus{}
	pool := NewPool(store, testRegistry(), 1, 100*time.Millisecond)
	pool.SetStatusPublisher(capture)
	pool.Start()
	defer pool.Stop()

	jobID := dispatch(t, store, "echo", map[string]string{"text": "hi"})
	awaitResult(t, store, jobID)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		events := capture.snapshot()
		if len(events) > 0 {
			if events[0].JobID != jobID || events[0].Status != "ok" {
				t.Fatalf("unexpected status event: %+v", events[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no status event published")
}

type putRecorder struct {
	queue.Store
	mu      sync.Mutex
	ctxErr  error
	results int
}

func (r *putRecorder) PutResult(ctx context.Context, jobID string, result *queue.Result, ttl time.Duration) error {
	r.mu.Lock()
	r.ctxErr = ctx.Err()
	r.results++
	r.mu.Unlock()
	return r.Store.PutResult(ctx, jobID, result, ttl)
}

func TestPoolPublishesResultDuringStop(t *testing.T) {
	mem := queue.NewMemoryStore("test")
	defer mem.Close()
	store := &putRecorder{Store: mem}

	entered := make(chan struct{})
	release := make(chan struct{})
	registry := jobs.NewRegistry(map[string]jobs.Handler{
		"slow": func(ctx context.Context, payload json.RawMessage) (any, error) {
			close(entered)
			<-release
			return map[string]string{"done": "yes"}, nil
		},
	})

	pool := NewPool(store, registry, 1, 100*time.Millisecond)
	pool.Start()

	jobID := dispatch(t, store, "slow", nil)
	<-entered

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	// Let Stop cancel the pool context while the handler is still running,
	// then let the handler finish.
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop")
	}

	store.mu.Lock()
	results, ctxErr := store.results, store.ctxErr
	store.mu.Unlock()
	if results != 1 {
		t.Fatalf("expected one published result, got %d", results)
	}
	if ctxErr != nil {
		t.Fatalf("result published under a canceled context: %v", ctxErr)
	}

	result := awaitResult(t, store, jobID)
	if !result.OK() {
		t.Fatalf("drained job lost its result: %+v", result)
	}
}

func TestPoolStopIsClean(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	pool := NewPool(store, testRegistry(), 3, 50*time.Millisecond)
	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop in time")
	}
}
