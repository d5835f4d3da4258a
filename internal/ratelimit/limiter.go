package ratelimit

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/provex/proctor-backend/internal/config"
)

// Class is a logical endpoint class with its own limit table entry.
type Class string

const (
	ClassAnswer    Class = "answer"
	ClassSkip      Class = "skip"
	ClassHeartbeat Class = "heartbeat"
	ClassSocket    Class = "socket"
)

// Key scopes a counter to (endpoint class, attempt, user, origin).
type Key struct {
	Class     Class
	AttemptID string
	UserID    int
	OriginID  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.Class, k.AttemptID, k.UserID, k.OriginID)
}

type entry struct {
	timestamps []time.Time
}

// Limiter is a sliding-window request counter. Each key holds the request
// timestamps inside the current window; anything older is dropped on the
// next touch. Entries self-expire via a probabilistic sweep on the hot
// path plus a periodic full sweep.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limits  map[Class]int
	window  time.Duration

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Limiter from the per-class configuration table.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		limits: map[Class]int{
			ClassAnswer:    cfg.AnswerPerWindow,
			ClassSkip:      cfg.SkipPerWindow,
			ClassHeartbeat: cfg.HeartbeatPerWindow,
			ClassSocket:    cfg.SocketPerWindow,
		},
		window:     cfg.Window,
		sweepEvery: time.Minute,
		stop:       make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records the request under the key if it fits in the window and
// reports whether it was admitted. Callers decide what a denial means for
// the endpoint class (reject vs. log-and-process for heartbeats).
func (l *Limiter) Allow(k Key, now time.Time) bool {
	limit, ok := l.limits[k.Class]
	if !ok || limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := k.String()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}

	cutoff := now.Add(-l.window)
	kept := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.timestamps = kept

	if len(e.timestamps) >= limit {
		return false
	}
	e.timestamps = append(e.timestamps, now)

	// Opportunistic GC: ~1% of calls scan for dead keys so memory stays
	// bounded even if the periodic sweep falls behind.
	if rand.Intn(100) == 0 {
		l.sweepLocked(now)
	}
	return true
}

// Close stops the background sweep loop.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			l.sweepLocked(now)
			l.mu.Unlock()
		}
	}
}

// sweepLocked removes keys whose every timestamp fell out of the window.
// Caller holds l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	for key, e := range l.entries {
		live := false
		for _, ts := range e.timestamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.entries, key)
		}
	}
}
