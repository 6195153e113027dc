package queue

import (
	"context"
	"sync"
	"time"
)

type memSlot struct {
	result    *Result
	expiresAt time.Time
}

// MemoryStore implements the Store contract in-process. It backs tests and
// serves as the startup fallback when Redis is unreachable, trading
// durability and cross-process sharing for availability.
type MemoryStore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Job
	results map[string]memSlot
	closed  bool

	keys Keys
}

func NewMemoryStore(namespace string) *MemoryStore {
	s := &MemoryStore{
		results: make(map[string]memSlot),
		keys:    Keys{Namespace: namespace},
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MemoryStore) Push(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.pending = append(s.pending, job)
	s.cond.Signal()
	return nil
}

func (s *MemoryStore) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	deadline := time.Now().Add(timeout)

	// Both the deadline and context cancellation wake the wait loop. The
	// wakeups take the mutex so a broadcast cannot slip in between the
	// loop's condition checks and cond.Wait and be lost.
	wake := func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
	timer := time.AfterFunc(timeout, wake)
	defer timer.Stop()
	stop := context.AfterFunc(ctx, wake)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) == 0 && !s.closed && ctx.Err() == nil && time.Now().Before(deadline) {
		s.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrStoreClosed
	}
	if len(s.pending) == 0 {
		return nil, nil // timed out empty
	}

	job := s.pending[0]
	s.pending = s.pending[1:]
	return job, nil
}

func (s *MemoryStore) PutResult(ctx context.Context, jobID string, result *Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.results[jobID] = memSlot{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, jobID string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.results[jobID]
	if !ok {
		return nil, nil
	}
	if !time.Now().Before(slot.expiresAt) {
		delete(s.results, jobID)
		return nil, nil
	}
	return slot.result, nil
}

func (s *MemoryStore) Depth(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pending)), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}
