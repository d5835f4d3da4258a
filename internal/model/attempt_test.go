package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestAttempt() *Attempt {
	return NewAttempt(42, uuid.New(), time.Hour, t0)
}

func TestNewAttempt(t *testing.T) {
	a := newTestAttempt()

	assert.Equal(t, AttemptStatusStarted, a.Status)
	assert.Equal(t, t0, a.StartedAt)
	assert.Equal(t, t0.Add(time.Hour), a.EndsAt)
	assert.Equal(t, VerificationPending, a.VerificationStatus)
	assert.True(t, a.IsActive())
	assert.False(t, a.IsTerminal())
}

func TestExpireIfDue(t *testing.T) {
	a := newTestAttempt()

	assert.False(t, a.ExpireIfDue(t0.Add(59*time.Minute)))
	assert.Equal(t, AttemptStatusStarted, a.Status)

	// Boundary: exactly EndsAt expires.
	assert.True(t, a.ExpireIfDue(t0.Add(time.Hour)))
	assert.Equal(t, AttemptStatusTimeExpired, a.Status)

	// Idempotent on a terminal attempt.
	assert.False(t, a.ExpireIfDue(t0.Add(2*time.Hour)))
}

func TestValidateQuestionAccess(t *testing.T) {
	a := newTestAttempt()
	q0, q1 := uuid.New(), uuid.New()

	require.NoError(t, a.ValidateQuestionAccess(0))
	assert.ErrorIs(t, a.ValidateQuestionAccess(1), ErrSkipAhead)

	a.MarkAnswered(q0, 0)
	assert.Equal(t, 1, a.CurrentQuestionIndex)

	assert.ErrorIs(t, a.ValidateQuestionAccess(0), ErrBackwardNavigation)
	require.NoError(t, a.ValidateQuestionAccess(1))

	a.MarkSkipped(q1, 1)
	assert.Equal(t, 2, a.CurrentQuestionIndex)
	assert.Equal(t, 2, a.Progress())
}

func TestMarkAnsweredIsIdempotent(t *testing.T) {
	a := newTestAttempt()
	q := uuid.New()

	a.MarkAnswered(q, 0)
	a.MarkAnswered(q, 0)

	assert.Len(t, a.AnsweredQuestions, 1)
	assert.Equal(t, 1, a.CurrentQuestionIndex)
}

func TestDeviceBinding(t *testing.T) {
	a := newTestAttempt()

	require.NoError(t, a.BindDevice("hash-a"))
	assert.ErrorIs(t, a.BindDevice("hash-b"), ErrDeviceAlreadyBound)
	assert.Equal(t, "hash-a", a.LockedDeviceFingerprint)

	a.FlagDeviceSwitch(t0.Add(time.Minute))
	assert.True(t, a.DeviceSwitchDetected)
	assert.Equal(t, AttemptStatusDeviceSwitch, a.Status)
	require.NotNil(t, a.DeviceSwitchAt)
}

func TestNonceLifecycle(t *testing.T) {
	a := newTestAttempt()
	q := uuid.New()

	// No nonce issued yet.
	assert.ErrorIs(t, a.ValidateNonce(q, "x", t0), ErrNoNonceIssued)

	a.IssueNonce(q, "nonce-1", 10*time.Minute, t0)

	assert.ErrorIs(t, a.ValidateNonce(q, "wrong", t0.Add(time.Second)), ErrNonceMismatch)
	require.NoError(t, a.ValidateNonce(q, "nonce-1", t0.Add(time.Second)))

	a.ConsumeNonce(q)
	assert.ErrorIs(t, a.ValidateNonce(q, "nonce-1", t0.Add(2*time.Second)), ErrNonceUsed)

	// Re-issue replaces the consumed nonce.
	a.IssueNonce(q, "nonce-2", 10*time.Minute, t0.Add(time.Minute))
	require.NoError(t, a.ValidateNonce(q, "nonce-2", t0.Add(2*time.Minute)))

	// Expiry is checked before the value comparison.
	assert.ErrorIs(t, a.ValidateNonce(q, "wrong", t0.Add(time.Hour)), ErrNonceExpired)
}

func TestRecordHeartbeat(t *testing.T) {
	a := newTestAttempt()

	gap := a.RecordHeartbeat(t0)
	assert.Zero(t, gap)

	gap = a.RecordHeartbeat(t0.Add(25 * time.Second))
	assert.Equal(t, 25*time.Second, gap)
}

func TestShouldTerminate(t *testing.T) {
	a := newTestAttempt()

	for i := 0; i < 4; i++ {
		a.RecordViolation(ViolationTabSwitch, "", t0)
	}
	assert.False(t, a.ShouldTerminate(5))

	a.RecordViolation(ViolationTabSwitch, "", t0)
	assert.True(t, a.ShouldTerminate(5))
}

func TestShouldTerminateHighSeverity(t *testing.T) {
	a := newTestAttempt()

	a.RecordViolation(ViolationProhibitedProcess, "vm tools", t0)
	assert.True(t, a.ShouldTerminate(5))

	// VM detection is non-blocking: it never terminates on its own.
	b := newTestAttempt()
	b.RecordViolation(ViolationVMDetected, "", t0)
	assert.False(t, b.ShouldTerminate(5))
}

func TestRestartable(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Attempt)
		expected bool
	}{
		{"started", func(a *Attempt) {}, false},
		{"completed", func(a *Attempt) { a.Status = AttemptStatusCompleted }, false},
		{"verification failed", func(a *Attempt) { a.Status = AttemptStatusVerificationFailed }, true},
		{"auto disqualified", func(a *Attempt) { a.Status = AttemptStatusAutoDisqualified }, true},
		{"admin invalidated", func(a *Attempt) { a.Status = AttemptStatusAdminInvalidated }, true},
		{"trust invalid", func(a *Attempt) {
			a.Status = AttemptStatusViolationTerminated
			a.TrustClass = TrustInvalid
		}, true},
		{"with progress", func(a *Attempt) {
			a.Status = AttemptStatusVerificationFailed
			a.MarkAnswered(uuid.New(), 0)
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAttempt()
			tc.mutate(a)
			assert.Equal(t, tc.expected, a.Restartable())
		})
	}
}

func TestRestartResetsEverything(t *testing.T) {
	a := newTestAttempt()
	require.NoError(t, a.BindDevice("hash-a"))
	a.RecordViolation(ViolationTabSwitch, "", t0)
	a.IssueNonce(uuid.New(), "n", time.Minute, t0)
	a.MissedHeartbeats = 3
	a.Status = AttemptStatusVerificationFailed
	score := 12.5
	a.TrustScore = &score
	a.TrustClass = TrustInvalid

	restartAt := t0.Add(2 * time.Hour)
	require.NoError(t, a.Restart(30*time.Minute, restartAt))

	assert.Equal(t, AttemptStatusStarted, a.Status)
	assert.Equal(t, restartAt, a.StartedAt)
	assert.Equal(t, restartAt.Add(30*time.Minute), a.EndsAt)
	assert.Empty(t, a.LockedDeviceFingerprint)
	assert.Empty(t, a.Violations)
	assert.Empty(t, a.QuestionNonces)
	assert.Zero(t, a.MissedHeartbeats)
	assert.Nil(t, a.TrustScore)
	assert.Equal(t, VerificationPending, a.VerificationStatus)
}

func TestRestartRejectedWhenNotEligible(t *testing.T) {
	a := newTestAttempt()
	a.Status = AttemptStatusCompleted
	assert.ErrorIs(t, a.Restart(time.Hour, t0), ErrNotRestartable)
}

func TestPauseAndResume(t *testing.T) {
	a := newTestAttempt()
	endsAt := a.EndsAt

	require.NoError(t, a.Pause("network review", t0.Add(time.Minute)))
	assert.Equal(t, AttemptStatusPaused, a.Status)
	assert.Equal(t, "network review", a.PauseReason)

	// Pausing twice fails.
	assert.ErrorIs(t, a.Pause("again", t0.Add(2*time.Minute)), ErrNotActive)

	require.NoError(t, a.ResumeFromPause())
	assert.Equal(t, AttemptStatusStarted, a.Status)
	assert.Nil(t, a.PausedAt)

	// The clock kept running: EndsAt is unchanged.
	assert.Equal(t, endsAt, a.EndsAt)
}

func TestInvalidate(t *testing.T) {
	a := newTestAttempt()
	a.Invalidate("proctor:7", "suspected collusion", t0.Add(time.Minute))

	assert.Equal(t, AttemptStatusAdminInvalidated, a.Status)
	assert.Equal(t, "proctor:7", a.InvalidatedBy)
	assert.True(t, a.IsTerminal())
	assert.True(t, a.Restartable())
}
