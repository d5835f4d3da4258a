package service

import (
	"math"

	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/model"
)

// TrustScorer computes the deterministic weighted-penalty trust score for
// an attempt at submission time. It is pure: same attempt state, same
// score, same breakdown. The breakdown is persisted for audit/appeal.
type TrustScorer struct {
	invalidMax    float64
	suspiciousMax float64
}

// NewTrustScorer creates a TrustScorer with the configured thresholds.
func NewTrustScorer(cfg config.IntegrityConfig) *TrustScorer {
	return &TrustScorer{
		invalidMax:    cfg.TrustInvalidMax,
		suspiciousMax: cfg.TrustSuspiciousMax,
	}
}

const (
	missedHeartbeatWeight   = 5
	missedHeartbeatCap      = 25
	verificationFailPenalty = 30
	deviceSwitchPenalty     = 50
)

// Score runs the weighted-penalty model over the attempt's accumulated
// signals and returns the clamped score, the 3-way classification, and an
// itemized breakdown.
func (s *TrustScorer) Score(a *model.Attempt) (float64, model.TrustClassification, *model.ScoreBreakdown) {
	breakdown := &model.ScoreBreakdown{
		Base:       100,
		ByCategory: make(map[string]int),
	}

	// Per-violation penalties, by configured weight. The instant-fail type
	// subtracts the full 100 on its own.
	for i := range a.Violations {
		v := &a.Violations[i]
		weight := v.Type.Weight()
		breakdown.Items = append(breakdown.Items, model.BreakdownItem{
			Type:    v.Type,
			Weight:  weight,
			At:      v.Timestamp,
			Details: v.Details,
		})
		breakdown.ByCategory[string(v.Type)] += weight

		if v.Type.Proctoring() {
			// Proctoring breaches are summed without cap.
			breakdown.ProctorPenalty += float64(weight)
		} else {
			breakdown.ViolationPenalty += float64(weight)
		}
	}

	// Timing anomalies: capped missed-heartbeat penalty plus a flat
	// penalty when post-attempt verification failed.
	hbPenalty := math.Min(float64(a.MissedHeartbeats*missedHeartbeatWeight), missedHeartbeatCap)
	breakdown.TimingPenalty = hbPenalty
	if a.VerificationStatus == model.VerificationFailed {
		breakdown.TimingPenalty += verificationFailPenalty
	}

	if a.DeviceSwitchDetected {
		breakdown.DevicePenalty = deviceSwitchPenalty
	}

	total := breakdown.ViolationPenalty + breakdown.ProctorPenalty +
		breakdown.TimingPenalty + breakdown.DevicePenalty

	score := breakdown.Base - total
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	score = math.Round(score*100) / 100

	return score, s.classify(score), breakdown
}

func (s *TrustScorer) classify(score float64) model.TrustClassification {
	switch {
	case score <= s.invalidMax:
		return model.TrustInvalid
	case score <= s.suspiciousMax:
		return model.TrustSuspicious
	default:
		return model.TrustClean
	}
}
