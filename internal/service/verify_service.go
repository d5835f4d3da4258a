package service

import (
	"fmt"
	"time"

	"github.com/provex/proctor-backend/internal/model"
)

// Verifier cross-checks timing, ordering, and heartbeat continuity after
// submission. The four checks are independent; overall verification passes
// iff all four pass.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

const (
	durationTolerance   = 5 * time.Second
	orderTolerance      = 1
	suspiciousHeartbeat = 30 * time.Second
)

// Verify runs the four consistency checks. heartbeats is the ordered
// heartbeat history accumulated during the attempt; submittedAt must be
// set by the caller before verification.
func (v *Verifier) Verify(a *model.Attempt, configuredDuration time.Duration, heartbeats []time.Time, submittedAt time.Time) (model.VerificationResults, bool) {
	results := model.VerificationResults{
		TimeConsistency:     v.checkTime(a, configuredDuration, submittedAt),
		QuestionOrder:       v.checkOrder(a),
		ViolationTimestamps: v.checkViolationTimestamps(a, submittedAt),
		HeartbeatContinuity: v.checkHeartbeats(heartbeats),
	}
	passed := results.TimeConsistency.Passed &&
		results.QuestionOrder.Passed &&
		results.ViolationTimestamps.Passed &&
		results.HeartbeatContinuity.Passed
	return results, passed
}

// checkTime verifies |(submittedAt - startedAt) - configuredDuration| <= 5s
// for a full-window submission, accepting early submissions that fit
// inside the window.
func (v *Verifier) checkTime(a *model.Attempt, configuredDuration time.Duration, submittedAt time.Time) model.CheckResult {
	elapsed := submittedAt.Sub(a.StartedAt)
	if elapsed < 0 {
		return model.CheckResult{Detail: "submission precedes attempt start"}
	}
	over := elapsed - configuredDuration
	if over > durationTolerance {
		return model.CheckResult{Detail: fmt.Sprintf(
			"elapsed %s exceeds configured duration %s beyond tolerance", elapsed, configuredDuration)}
	}
	return model.CheckResult{Passed: true, Detail: fmt.Sprintf("elapsed %s within configured duration %s", elapsed, configuredDuration)}
}

func (v *Verifier) checkOrder(a *model.Attempt) model.CheckResult {
	progress := a.Progress()
	diff := a.CurrentQuestionIndex - progress
	if diff < -orderTolerance || diff > orderTolerance {
		return model.CheckResult{Detail: fmt.Sprintf(
			"cursor %d inconsistent with %d answered+skipped", a.CurrentQuestionIndex, progress)}
	}
	return model.CheckResult{Passed: true, Detail: fmt.Sprintf(
		"cursor %d consistent with %d answered+skipped", a.CurrentQuestionIndex, progress)}
}

func (v *Verifier) checkViolationTimestamps(a *model.Attempt, submittedAt time.Time) model.CheckResult {
	for i := range a.Violations {
		ts := a.Violations[i].Timestamp
		if ts.Before(a.StartedAt) || ts.After(submittedAt) {
			return model.CheckResult{Detail: fmt.Sprintf(
				"violation %s at %s falls outside the attempt window", a.Violations[i].Type, ts.Format(time.RFC3339))}
		}
	}
	return model.CheckResult{Passed: true, Detail: fmt.Sprintf("%d violations within the attempt window", len(a.Violations))}
}

func (v *Verifier) checkHeartbeats(heartbeats []time.Time) model.CheckResult {
	var maxGap time.Duration
	for i := 1; i < len(heartbeats); i++ {
		if gap := heartbeats[i].Sub(heartbeats[i-1]); gap > maxGap {
			maxGap = gap
		}
	}
	if maxGap > suspiciousHeartbeat {
		return model.CheckResult{Detail: fmt.Sprintf("heartbeat gap of %s exceeds %s", maxGap, suspiciousHeartbeat)}
	}
	return model.CheckResult{Passed: true, Detail: fmt.Sprintf("max heartbeat gap %s", maxGap)}
}
