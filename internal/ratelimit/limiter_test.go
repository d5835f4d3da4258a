package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/provex/proctor-backend/internal/config"
)

func newTestLimiter() *Limiter {
	return New(config.RateLimitConfig{
		AnswerPerWindow:    3,
		SkipPerWindow:      2,
		HeartbeatPerWindow: 5,
		SocketPerWindow:    10,
		Window:             time.Minute,
	})
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	k := Key{Class: ClassAnswer, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(k, now.Add(time.Duration(i)*time.Second)))
	}
	assert.False(t, l.Allow(k, now.Add(4*time.Second)))
}

func TestAllowSlidingWindow(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	k := Key{Class: ClassSkip, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	now := time.Now()

	assert.True(t, l.Allow(k, now))
	assert.True(t, l.Allow(k, now.Add(time.Second)))
	// Denied requests record no timestamp against the window.
	assert.False(t, l.Allow(k, now.Add(2*time.Second)))

	// Both admitted timestamps have fallen out of the window; the slots
	// reopen and the limit applies to the fresh window.
	later := now.Add(62 * time.Second)
	assert.True(t, l.Allow(k, later))
	assert.True(t, l.Allow(k, later.Add(time.Second)))
	assert.False(t, l.Allow(k, later.Add(2*time.Second)))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	now := time.Now()
	a := Key{Class: ClassSkip, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	b := Key{Class: ClassSkip, AttemptID: "att-2", UserID: 42, OriginID: "10.0.0.1"}

	assert.True(t, l.Allow(a, now))
	assert.True(t, l.Allow(a, now))
	assert.False(t, l.Allow(a, now))

	assert.True(t, l.Allow(b, now))
}

func TestAllowClassesAreIndependent(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	now := time.Now()
	skip := Key{Class: ClassSkip, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	answer := Key{Class: ClassAnswer, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}

	assert.True(t, l.Allow(skip, now))
	assert.True(t, l.Allow(skip, now))
	assert.False(t, l.Allow(skip, now))

	assert.True(t, l.Allow(answer, now))
}

func TestAllowUnknownClass(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	k := Key{Class: Class("unlisted"), AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	now := time.Now()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(k, now))
	}
}

func TestAllowZeroLimitDisablesClass(t *testing.T) {
	l := New(config.RateLimitConfig{Window: time.Minute})
	defer l.Close()

	k := Key{Class: ClassAnswer, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	now := time.Now()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(k, now))
	}
}

func TestSweepDropsExpiredKeys(t *testing.T) {
	l := newTestLimiter()
	defer l.Close()

	now := time.Now()
	k := Key{Class: ClassAnswer, AttemptID: "att-1", UserID: 42, OriginID: "10.0.0.1"}
	l.Allow(k, now)

	l.mu.Lock()
	l.sweepLocked(now.Add(2 * time.Minute))
	remaining := len(l.entries)
	l.mu.Unlock()

	assert.Zero(t, remaining)
}

func TestKeyString(t *testing.T) {
	k := Key{Class: ClassHeartbeat, AttemptID: "att-9", UserID: 7, OriginID: "conn-1"}
	assert.Equal(t, "heartbeat:att-9:7:conn-1", k.String())
}

func TestCloseIsIdempotent(t *testing.T) {
	l := newTestLimiter()
	l.Close()
	l.Close()
}
