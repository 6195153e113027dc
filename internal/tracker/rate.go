package tracker

import (
	"sync"
	"time"
)

type rateEntry struct {
	// times[start:] are the retained timestamps, oldest first. Eviction
	// advances start; the slice is compacted once the dead prefix dominates,
	// keeping each Check amortized O(1).
	times    []time.Time
	start    int
	lastSeen time.Time
}

func (e *rateEntry) evictBefore(cutoff time.Time) {
	for e.start < len(e.times) && !e.times[e.start].After(cutoff) {
		e.start++
	}
	if e.start > len(e.times)/2 && e.start > 32 {
		e.times = append(e.times[:0], e.times[e.start:]...)
		e.start = 0
	}
}

func (e *rateEntry) count() int {
	return len(e.times) - e.start
}

type rateShard struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
}

// RateTracker answers "is this identity over its message rate right now". It
// keeps a trailing window of event timestamps per identity and evicts stale
// ones lazily on each call. No I/O; safe on the synchronous message path.
type RateTracker struct {
	window    time.Duration
	threshold int
	shards    [shardCount]rateShard
}

func NewRateTracker(window time.Duration, threshold int) *RateTracker {
	t := &RateTracker{
		window:    window,
		threshold: threshold,
	}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*rateEntry)
	}
	return t
}

// Check records one event for identity at now and reports whether the
// identity exceeds the threshold, along with the in-window count.
func (t *RateTracker) Check(identity string, now time.Time) (bool, int) {
	shard := &t.shards[shardIndex(identity)]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[identity]
	if !ok {
		entry = &rateEntry{}
		shard.entries[identity] = entry
	}

	entry.evictBefore(now.Add(-t.window))
	entry.times = append(entry.times, now)
	entry.lastSeen = now

	count := entry.count()
	return count > t.threshold, count
}

// Reset clears the identity's history so the next Check starts fresh, used
// after a corrective action to avoid immediate re-triggering.
func (t *RateTracker) Reset(identity string) {
	shard := &t.shards[shardIndex(identity)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.entries, identity)
}

// Reap drops identities that have been idle longer than maxIdle as of now and
// returns how many were removed. Without it, identities that go permanently
// quiet would be retained forever.
func (t *RateTracker) Reap(now time.Time, maxIdle time.Duration) int {
	cutoff := now.Add(-maxIdle)
	removed := 0
	for i := range t.shards {
		shard := &t.shards[i]
		shard.mu.Lock()
		for identity, entry := range shard.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(shard.entries, identity)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
