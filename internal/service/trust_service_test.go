package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/model"
)

func newTestScorer() *TrustScorer {
	return NewTrustScorer(config.IntegrityConfig{
		TrustInvalidMax:    30,
		TrustSuspiciousMax: 60,
	})
}

func scorableAttempt() (*model.Attempt, time.Time) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return model.NewAttempt(42, uuid.New(), time.Hour, t0), t0
}

func TestScoreCleanAttempt(t *testing.T) {
	a, _ := scorableAttempt()

	score, class, breakdown := newTestScorer().Score(a)

	assert.Equal(t, 100.0, score)
	assert.Equal(t, model.TrustClean, class)
	assert.Equal(t, 100.0, breakdown.Base)
	assert.Zero(t, breakdown.ViolationPenalty)
	assert.Zero(t, breakdown.ProctorPenalty)
	assert.Zero(t, breakdown.TimingPenalty)
	assert.Zero(t, breakdown.DevicePenalty)
}

func TestScoreViolationWeights(t *testing.T) {
	a, t0 := scorableAttempt()
	a.RecordViolation(model.ViolationTabSwitch, "", t0.Add(time.Minute))
	a.RecordViolation(model.ViolationDevtoolsOpen, "", t0.Add(2*time.Minute))

	score, class, breakdown := newTestScorer().Score(a)

	assert.Equal(t, 75.0, score)
	assert.Equal(t, model.TrustClean, class)
	assert.Equal(t, 25.0, breakdown.ViolationPenalty)
	require.Len(t, breakdown.Items, 2)
	assert.Equal(t, 5, breakdown.ByCategory[string(model.ViolationTabSwitch)])
	assert.Equal(t, 20, breakdown.ByCategory[string(model.ViolationDevtoolsOpen)])
}

func TestScoreProctoringPenaltyIsUncapped(t *testing.T) {
	a, t0 := scorableAttempt()
	for i := 0; i < 5; i++ {
		a.RecordViolation(model.ViolationCameraDisabled, "", t0.Add(time.Duration(i)*time.Minute))
	}

	score, class, breakdown := newTestScorer().Score(a)

	assert.Equal(t, 75.0, breakdown.ProctorPenalty)
	assert.Zero(t, breakdown.ViolationPenalty)
	assert.Equal(t, 25.0, score)
	assert.Equal(t, model.TrustInvalid, class)
}

func TestScoreMissedHeartbeatsCapped(t *testing.T) {
	a, _ := scorableAttempt()
	a.MissedHeartbeats = 3

	score, _, breakdown := newTestScorer().Score(a)
	assert.Equal(t, 15.0, breakdown.TimingPenalty)
	assert.Equal(t, 85.0, score)

	a.MissedHeartbeats = 10
	score, _, breakdown = newTestScorer().Score(a)
	assert.Equal(t, 25.0, breakdown.TimingPenalty)
	assert.Equal(t, 75.0, score)
}

func TestScoreVerificationFailure(t *testing.T) {
	a, _ := scorableAttempt()
	a.VerificationStatus = model.VerificationFailed

	score, class, breakdown := newTestScorer().Score(a)

	assert.Equal(t, 30.0, breakdown.TimingPenalty)
	assert.Equal(t, 70.0, score)
	assert.Equal(t, model.TrustClean, class)
}

func TestScoreDeviceSwitch(t *testing.T) {
	a, _ := scorableAttempt()
	a.DeviceSwitchDetected = true

	score, class, breakdown := newTestScorer().Score(a)

	assert.Equal(t, 50.0, breakdown.DevicePenalty)
	assert.Equal(t, 50.0, score)
	assert.Equal(t, model.TrustSuspicious, class)
}

func TestScoreClampedAtZero(t *testing.T) {
	a, t0 := scorableAttempt()
	a.RecordViolation(model.ViolationVMDetected, "", t0.Add(time.Minute))
	a.DeviceSwitchDetected = true

	score, class, _ := newTestScorer().Score(a)

	assert.Zero(t, score)
	assert.Equal(t, model.TrustInvalid, class)
}

func TestScoreDeterministic(t *testing.T) {
	a, t0 := scorableAttempt()
	a.RecordViolation(model.ViolationCopyPaste, "", t0.Add(time.Minute))
	a.MissedHeartbeats = 2

	s := newTestScorer()
	s1, c1, _ := s.Score(a)
	s2, c2, _ := s.Score(a)

	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}

func TestClassifyBoundaries(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		score float64
		want  model.TrustClassification
	}{
		{0, model.TrustInvalid},
		{30, model.TrustInvalid},
		{30.01, model.TrustSuspicious},
		{60, model.TrustSuspicious},
		{60.01, model.TrustClean},
		{100, model.TrustClean},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.classify(tt.score), "score %.2f", tt.score)
	}
}
