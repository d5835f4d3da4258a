package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/provex/proctor-backend/internal/model"
)

func verifiableAttempt() (*model.Attempt, time.Time) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return model.NewAttempt(42, uuid.New(), time.Hour, t0), t0
}

func heartbeatsEvery(start time.Time, interval time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}

func TestVerifyAllChecksPass(t *testing.T) {
	a, t0 := verifiableAttempt()
	a.MarkAnswered(uuid.New(), 0)
	a.MarkAnswered(uuid.New(), 1)
	a.RecordViolation(model.ViolationWindowBlur, "", t0.Add(10*time.Minute))

	submittedAt := t0.Add(30 * time.Minute)
	results, passed := NewVerifier().Verify(a, time.Hour, heartbeatsEvery(t0, 5*time.Second, 20), submittedAt)

	assert.True(t, passed)
	assert.True(t, results.TimeConsistency.Passed)
	assert.True(t, results.QuestionOrder.Passed)
	assert.True(t, results.ViolationTimestamps.Passed)
	assert.True(t, results.HeartbeatContinuity.Passed)
}

func TestVerifyTimeConsistency(t *testing.T) {
	v := NewVerifier()

	tests := []struct {
		name        string
		submitAfter time.Duration
		want        bool
	}{
		{"early submission", 10 * time.Minute, true},
		{"exactly the configured duration", time.Hour, true},
		{"inside the tolerance", time.Hour + 4*time.Second, true},
		{"at the tolerance edge", time.Hour + 5*time.Second, true},
		{"past the tolerance", time.Hour + 6*time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, t0 := verifiableAttempt()
			_, passed := v.Verify(a, time.Hour, nil, t0.Add(tt.submitAfter))
			assert.Equal(t, tt.want, passed)
		})
	}
}

func TestVerifySubmissionBeforeStartFails(t *testing.T) {
	a, t0 := verifiableAttempt()

	results, passed := NewVerifier().Verify(a, time.Hour, nil, t0.Add(-time.Minute))

	assert.False(t, passed)
	assert.False(t, results.TimeConsistency.Passed)
}

func TestVerifyQuestionOrder(t *testing.T) {
	a, t0 := verifiableAttempt()
	a.MarkAnswered(uuid.New(), 0)
	a.MarkSkipped(uuid.New(), 1)

	// Cursor 2, progress 2: consistent.
	results, _ := NewVerifier().Verify(a, time.Hour, nil, t0.Add(time.Minute))
	assert.True(t, results.QuestionOrder.Passed)

	// Off by one is tolerated.
	a.CurrentQuestionIndex = 3
	results, _ = NewVerifier().Verify(a, time.Hour, nil, t0.Add(time.Minute))
	assert.True(t, results.QuestionOrder.Passed)

	// Off by two is not.
	a.CurrentQuestionIndex = 4
	results, _ = NewVerifier().Verify(a, time.Hour, nil, t0.Add(time.Minute))
	assert.False(t, results.QuestionOrder.Passed)
}

func TestVerifyViolationTimestamps(t *testing.T) {
	a, t0 := verifiableAttempt()
	submittedAt := t0.Add(30 * time.Minute)

	a.RecordViolation(model.ViolationTabSwitch, "", t0.Add(5*time.Minute))
	results, _ := NewVerifier().Verify(a, time.Hour, nil, submittedAt)
	assert.True(t, results.ViolationTimestamps.Passed)

	a.RecordViolation(model.ViolationTabSwitch, "", submittedAt.Add(time.Second))
	results, _ = NewVerifier().Verify(a, time.Hour, nil, submittedAt)
	assert.False(t, results.ViolationTimestamps.Passed)
}

func TestVerifyViolationBeforeStartFails(t *testing.T) {
	a, t0 := verifiableAttempt()
	a.RecordViolation(model.ViolationTabSwitch, "", t0.Add(-time.Second))

	results, _ := NewVerifier().Verify(a, time.Hour, nil, t0.Add(time.Minute))
	assert.False(t, results.ViolationTimestamps.Passed)
}

func TestVerifyHeartbeatContinuity(t *testing.T) {
	a, t0 := verifiableAttempt()
	submittedAt := t0.Add(5 * time.Minute)
	v := NewVerifier()

	results, _ := v.Verify(a, time.Hour, heartbeatsEvery(t0, 5*time.Second, 30), submittedAt)
	assert.True(t, results.HeartbeatContinuity.Passed)

	// One gap above 30s taints the whole history.
	gapped := heartbeatsEvery(t0, 5*time.Second, 10)
	gapped = append(gapped, gapped[len(gapped)-1].Add(31*time.Second))
	results, _ = v.Verify(a, time.Hour, gapped, submittedAt)
	assert.False(t, results.HeartbeatContinuity.Passed)

	// A gap of exactly 30s is still continuous.
	edge := []time.Time{t0, t0.Add(30 * time.Second)}
	results, _ = v.Verify(a, time.Hour, edge, submittedAt)
	assert.True(t, results.HeartbeatContinuity.Passed)
}

func TestVerifyEmptyHeartbeatHistoryPasses(t *testing.T) {
	a, t0 := verifiableAttempt()

	results, _ := NewVerifier().Verify(a, time.Hour, nil, t0.Add(time.Minute))
	assert.True(t, results.HeartbeatContinuity.Passed)
}
