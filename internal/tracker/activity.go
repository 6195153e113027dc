package tracker

import (
	"math/rand"
	"sync"
	"time"
)

type chatEvent struct {
	at    time.Time
	actor string
}

type chatEntry struct {
	events      []chatEvent
	start       int
	lastTrigger time.Time
	lastSeen    time.Time
}

func (e *chatEntry) evictBefore(cutoff time.Time) {
	for e.start < len(e.events) && e.events[e.start].at.Before(cutoff) {
		e.start++
	}
	if e.start > len(e.events)/2 && e.start > 32 {
		e.events = append(e.events[:0], e.events[e.start:]...)
		e.start = 0
	}
}

type chatShard struct {
	mu      sync.Mutex
	entries map[string]*chatEntry
}

// ActivityConfig tunes conversation detection. Retention is how long events
// are kept; ActiveWindow is the shorter horizon actually evaluated. A group
// engages when the active window holds at least MinMessages events from at
// least MinActors distinct actors, the group is off cooldown, and the trigger
// chance passes.
type ActivityConfig struct {
	Retention     time.Duration
	ActiveWindow  time.Duration
	MinMessages   int
	MinActors     int
	Cooldown      time.Duration
	TriggerChance float64
}

// ActivityDetector answers "is this a live, multi-party conversation worth
// engaging". Single-actor flooding never qualifies; that is the rate
// tracker's job.
type ActivityDetector struct {
	cfg    ActivityConfig
	rng    func() float64
	shards [shardCount]chatShard
}

func NewActivityDetector(cfg ActivityConfig) *ActivityDetector {
	if cfg.ActiveWindow <= 0 || cfg.ActiveWindow > cfg.Retention {
		cfg.ActiveWindow = cfg.Retention
	}
	if cfg.TriggerChance <= 0 || cfg.TriggerChance > 1 {
		cfg.TriggerChance = 1
	}

	d := &ActivityDetector{
		cfg: cfg,
		rng: rand.Float64,
	}
	for i := range d.shards {
		d.shards[i].entries = make(map[string]*chatEntry)
	}
	return d
}

// Record notes one message from actor in group at now and reports whether the
// group's conversation is active enough to engage.
func (d *ActivityDetector) Record(group, actor string, now time.Time) bool {
	shard := &d.shards[shardIndex(group)]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[group]
	if !ok {
		entry = &chatEntry{}
		shard.entries[group] = entry
	}

	entry.events = append(entry.events, chatEvent{at: now, actor: actor})
	entry.lastSeen = now
	entry.evictBefore(now.Add(-d.cfg.Retention))

	activeCutoff := now.Add(-d.cfg.ActiveWindow)
	active := 0
	actors := make(map[string]struct{})
	for _, ev := range entry.events[entry.start:] {
		if !ev.at.Before(activeCutoff) {
			active++
			actors[ev.actor] = struct{}{}
		}
	}

	if active < d.cfg.MinMessages || len(actors) < d.cfg.MinActors {
		return false
	}

	if d.cfg.Cooldown > 0 && !entry.lastTrigger.IsZero() && now.Sub(entry.lastTrigger) < d.cfg.Cooldown {
		return false
	}

	if d.cfg.TriggerChance < 1 && d.rng() >= d.cfg.TriggerChance {
		return false
	}

	entry.lastTrigger = now
	return true
}

// Reset clears the group's window and cooldown.
func (d *ActivityDetector) Reset(group string) {
	shard := &d.shards[shardIndex(group)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.entries, group)
}

// Reap drops groups idle longer than maxIdle as of now and returns how many
// were removed.
func (d *ActivityDetector) Reap(now time.Time, maxIdle time.Duration) int {
	cutoff := now.Add(-maxIdle)
	removed := 0
	for i := range d.shards {
		shard := &d.shards[i]
		shard.mu.Lock()
		for group, entry := range shard.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(shard.entries, group)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
