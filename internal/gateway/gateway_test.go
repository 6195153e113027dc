package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/guildest/guildcore/internal/jobs"
	"github.com/guildest/guildcore/internal/llm"
	"github.com/guildest/guildcore/internal/logger"
	"github.com/guildest/guildcore/internal/queue"
	"github.com/guildest/guildcore/internal/tracker"
	"github.com/guildest/guildcore/internal/worker"
)

func TestMain(m *testing.M) {
	logger.Init("gateway-test")
	os.Exit(m.Run())
}

type fakeResponder struct {
	mu          sync.Mutex
	suppressed  []string
	flagged     []string
	replies     []string
	suppressCnt int
}

func (r *fakeResponder) SuppressMessage(ctx context.Context, ev Event, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed = append(r.suppressed, ev.ActorID)
	r.suppressCnt = count
	return nil
}

func (r *fakeResponder) FlagMessage(ctx context.Context, ev Event, verdict string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagged = append(r.flagged, verdict)
	return nil
}

func (r *fakeResponder) SendReply(ctx context.Context, groupID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func (r *fakeResponder) snapshotFlags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.flagged...)
}

func (r *fakeResponder) snapshotReplies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

func newTestGateway(store queue.Store, responder Responder) *Gateway {
	rates := tracker.NewRateTracker(10*time.Second, 20)
	activity := tracker.NewActivityDetector(tracker.ActivityConfig{
		Retention:     30 * time.Second,
		ActiveWindow:  20 * time.Second,
		MinMessages:   6,
		MinActors:     3,
		TriggerChance: 1,
	})
	return New(
		rates,
		activity,
		jobs.NewDispatcher(store),
		jobs.NewWaiter(store, 20*time.Millisecond),
		responder,
		nil,
		Budgets{
			SafetyWait: 2 * time.Second,
			SafetyTTL:  time.Minute,
			LLMWait:    2 * time.Second,
			LLMTTL:     time.Minute,
		},
	)
}

func testWorkers(t *testing.T, store queue.Store, verdict string) *worker.Pool {
	t.Helper()
	registry := jobs.NewRegistry(map[string]jobs.Handler{
		"safety_scan": func(ctx context.Context, payload json.RawMessage) (any, error) {
			return &llm.ScanResponse{Verdict: verdict}, nil
		},
		"llm_reply": func(ctx context.Context, payload json.RawMessage) (any, error) {
			var req llm.ReplyRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, err
			}
			return &llm.ReplyResponse{Reply: "on topic: " + req.Prompt}, nil
		},
	})

	pool := worker.NewPool(store, registry, 2, 100*time.Millisecond)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func TestGatewaySuppressesSpammer(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	gw := newTestGateway(store, responder)
	testWorkers(t, store, "safe")

	base := time.Now()
	for i := 0; i < 21; i++ {
		gw.HandleMessage(context.Background(), Event{
			GroupID: "g1",
			ActorID: "spammer",
			Content: "buy now",
			At:      base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
	}
	gw.Wait()

	responder.mu.Lock()
	defer responder.mu.Unlock()
	if len(responder.suppressed) != 1 {
		t.Fatalf("expected exactly one suppression, got %d", len(responder.suppressed))
	}
	if responder.suppressCnt != 21 {
		t.Fatalf("expected suppression at count 21, got %d", responder.suppressCnt)
	}
}

func TestGatewaySuppressedMessageDispatchesNothing(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	rates := tracker.NewRateTracker(10*time.Second, 0) // every message is over limit
	activity := tracker.NewActivityDetector(tracker.ActivityConfig{
		Retention:     30 * time.Second,
		ActiveWindow:  20 * time.Second,
		MinMessages:   1,
		MinActors:     1,
		TriggerChance: 1,
	})
	gw := New(rates, activity, jobs.NewDispatcher(store), jobs.NewWaiter(store, 20*time.Millisecond),
		responder, nil, Budgets{
			SafetyWait: time.Second,
			SafetyTTL:  time.Minute,
			LLMWait:    time.Second,
			LLMTTL:     time.Minute,
		})

	gw.HandleMessage(context.Background(), Event{
		GroupID: "g1",
		ActorID: "spammer",
		Content: "buy now",
		At:      time.Now(),
	})
	gw.Wait()

	responder.mu.Lock()
	suppressions := len(responder.suppressed)
	responder.mu.Unlock()
	if suppressions != 1 {
		t.Fatalf("expected one suppression, got %d", suppressions)
	}

	// Suppression short-circuits the pipeline: no safety scan, no reply job.
	if n, err := store.Depth(context.Background()); err != nil || n != 0 {
		t.Fatalf("suppressed message enqueued %d jobs (err %v)", n, err)
	}
}

func TestGatewayFlagsUnsafeMessage(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	gw := newTestGateway(store, responder)
	testWorkers(t, store, "harassment")

	gw.HandleMessage(context.Background(), Event{
		GroupID: "g1",
		ActorID: "alice",
		Content: "something nasty",
		At:      time.Now(),
	})
	gw.Wait()

	flags := responder.snapshotFlags()
	if len(flags) != 1 || flags[0] != "harassment" {
		t.Fatalf("expected one harassment flag, got %v", flags)
	}
}

func TestGatewaySafeMessageNotFlagged(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	gw := newTestGateway(store, responder)
	testWorkers(t, store, "safe")

	gw.HandleMessage(context.Background(), Event{
		GroupID: "g1",
		ActorID: "alice",
		Content: "good morning",
		At:      time.Now(),
	})
	gw.Wait()

	if flags := responder.snapshotFlags(); len(flags) != 0 {
		t.Fatalf("safe message was flagged: %v", flags)
	}
}

func TestGatewayEngagesActiveConversation(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	gw := newTestGateway(store, responder)
	testWorkers(t, store, "safe")

	base := time.Now()
	actors := []string{"alice", "bob", "carol"}
	for i := 0; i < 6; i++ {
		gw.HandleMessage(context.Background(), Event{
			GroupID: "g1",
			ActorID: actors[i%3],
			Content: fmt.Sprintf("message %d", i),
			At:      base.Add(time.Duration(i) * time.Second),
		})
	}
	gw.Wait()

	replies := responder.snapshotReplies()
	if len(replies) == 0 {
		t.Fatalf("expected a conversation reply")
	}
	if replies[0] != "on topic: message 5" {
		t.Fatalf("unexpected reply: %q", replies[0])
	}
}

func TestGatewaySurvivesDeadBackend(t *testing.T) {
	store := queue.NewMemoryStore("test")
	store.Close() // every dispatch now fails

	responder := &fakeResponder{}
	gw := newTestGateway(store, responder)

	// The inbound path must not panic or block when the queue is gone.
	gw.HandleMessage(context.Background(), Event{
		GroupID: "g1",
		ActorID: "alice",
		Content: "hello",
		At:      time.Now(),
	})
	gw.Wait()

	if flags := responder.snapshotFlags(); len(flags) != 0 {
		t.Fatalf("unexpected flags with dead backend: %v", flags)
	}
}

func TestGatewayWaiterTimeoutDropsSilently(t *testing.T) {
	store := queue.NewMemoryStore("test")
	defer store.Close()

	responder := &fakeResponder{}
	rates := tracker.NewRateTracker(10*time.Second, 20)
	activity := tracker.NewActivityDetector(tracker.ActivityConfig{
		Retention:    30 * time.Second,
		ActiveWindow: 20 * time.Second,
		MinMessages:  6,
		MinActors:    3,
	})

	// No workers running: the safety wait must expire quietly.
	gw := New(rates, activity, jobs.NewDispatcher(store), jobs.NewWaiter(store, 20*time.Millisecond),
		responder, nil, Budgets{
			SafetyWait: 100 * time.Millisecond,
			SafetyTTL:  time.Minute,
			LLMWait:    100 * time.Millisecond,
			LLMTTL:     time.Minute,
		})

	gw.HandleMessage(context.Background(), Event{
		GroupID: "g1",
		ActorID: "alice",
		Content: "hello",
		At:      time.Now(),
	})
	gw.Wait()

	if flags := responder.snapshotFlags(); len(flags) != 0 {
		t.Fatalf("timeout surfaced to responder: %v", flags)
	}
}
