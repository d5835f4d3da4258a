package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusPending             AttemptStatus = "PENDING"
	AttemptStatusStarted             AttemptStatus = "STARTED"
	AttemptStatusCompleted           AttemptStatus = "COMPLETED"
	AttemptStatusTimeExpired         AttemptStatus = "TIME_EXPIRED"
	AttemptStatusViolationTerminated AttemptStatus = "VIOLATION_TERMINATED"
	AttemptStatusAutoDisqualified    AttemptStatus = "AUTO_DISQUALIFIED"
	AttemptStatusDeviceSwitch        AttemptStatus = "DEVICE_SWITCH_DETECTED"
	AttemptStatusVerificationFailed  AttemptStatus = "VERIFICATION_FAILED"
	AttemptStatusPaused              AttemptStatus = "PAUSED"
	AttemptStatusAdminInvalidated    AttemptStatus = "ADMIN_INVALIDATED"
)

// TrustClassification is the 3-way verdict derived from the trust score.
type TrustClassification string

const (
	TrustClean      TrustClassification = "CLEAN"
	TrustSuspicious TrustClassification = "SUSPICIOUS"
	TrustInvalid    TrustClassification = "INVALID"
)

// VerificationStatus is the outcome of post-attempt verification.
type VerificationStatus string

const (
	VerificationPending VerificationStatus = "PENDING"
	VerificationPassed  VerificationStatus = "PASSED"
	VerificationFailed  VerificationStatus = "FAILED"
)

// Aggregate invariant violations surfaced to callers as sentinel errors.
var (
	ErrBackwardNavigation = errors.New("question index must not move backward")
	ErrSkipAhead          = errors.New("question index must not skip ahead")
	ErrDeviceAlreadyBound = errors.New("device fingerprint is already bound")
	ErrNoNonceIssued      = errors.New("no nonce issued for this question")
	ErrNonceUsed          = errors.New("nonce already used")
	ErrNonceExpired       = errors.New("nonce expired")
	ErrNonceMismatch      = errors.New("nonce does not match")
	ErrNotRestartable     = errors.New("attempt is not restartable")
	ErrNotActive          = errors.New("attempt is not active")
)

// QuestionNonce is a single-use token gating answer submission for one
// question. Used is monotone: it only ever flips false -> true.
type QuestionNonce struct {
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// CheckResult is one verification check's outcome with its diagnostic.
type CheckResult struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// VerificationResults holds the four post-attempt consistency checks.
type VerificationResults struct {
	TimeConsistency      CheckResult `json:"time_consistency"`
	QuestionOrder        CheckResult `json:"question_order"`
	ViolationTimestamps  CheckResult `json:"violation_timestamps"`
	HeartbeatContinuity  CheckResult `json:"heartbeat_continuity"`
}

// ScoreBreakdown is the itemized audit record of a trust-score run.
type ScoreBreakdown struct {
	Base             float64          `json:"base"`
	ViolationPenalty float64          `json:"violation_penalty"`
	TimingPenalty    float64          `json:"timing_penalty"`
	DevicePenalty    float64          `json:"device_penalty"`
	ProctorPenalty   float64          `json:"proctor_penalty"`
	Items            []BreakdownItem  `json:"items"`
	ByCategory       map[string]int   `json:"by_category"`
}

// BreakdownItem attributes a deduction to a single violation.
type BreakdownItem struct {
	Type    ViolationType `json:"type"`
	Weight  int           `json:"weight"`
	At      time.Time     `json:"at"`
	Details string        `json:"details,omitempty"`
}

// Attempt is one user's timed exam attempt, the canonical lifecycle
// authority. All integrity components mutate it through the methods below;
// the methods enforce the aggregate's invariants (append-only violation
// log, forward-only cursor, bind-once device lock, server-computed EndsAt).
type Attempt struct {
	ID     uuid.UUID `json:"id"`
	UserID int       `json:"user_id"`
	ExamID uuid.UUID `json:"exam_id"`

	Status    AttemptStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndsAt    time.Time     `json:"ends_at"`

	CurrentQuestionIndex int         `json:"current_question_index"`
	AnsweredQuestions    []uuid.UUID `json:"answered_questions"`
	SkippedQuestions     []uuid.UUID `json:"skipped_questions"`

	LockedDeviceFingerprint string     `json:"locked_device_fingerprint,omitempty"`
	DeviceSwitchDetected    bool       `json:"device_switch_detected"`
	DeviceSwitchAt          *time.Time `json:"device_switch_at,omitempty"`

	Violations []Violation `json:"violations"`

	MissedHeartbeats int        `json:"missed_heartbeats"`
	LastHeartbeatAt  *time.Time `json:"last_heartbeat_at,omitempty"`

	TrustScore          *float64            `json:"trust_score,omitempty"`
	TrustClass          TrustClassification `json:"trust_classification,omitempty"`
	ScoringBreakdown    *ScoreBreakdown     `json:"scoring_breakdown,omitempty"`
	VerificationStatus  VerificationStatus  `json:"verification_status"`
	VerificationResults *VerificationResults `json:"verification_results,omitempty"`

	QuestionNonces map[string]*QuestionNonce `json:"question_nonces"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// Emergency proctor controls.
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	PauseReason      string     `json:"pause_reason,omitempty"`
	InvalidatedAt    *time.Time `json:"invalidated_at,omitempty"`
	InvalidateReason string     `json:"invalidate_reason,omitempty"`
	InvalidatedBy    string     `json:"invalidated_by,omitempty"`
	AdminSubmitted   bool       `json:"admin_submitted"`
}

// NewAttempt creates a started attempt for a (user, exam) pair. EndsAt is
// computed once from the full exam duration and never recomputed.
func NewAttempt(userID int, examID uuid.UUID, duration time.Duration, now time.Time) *Attempt {
	return &Attempt{
		ID:                 uuid.New(),
		UserID:             userID,
		ExamID:             examID,
		Status:             AttemptStatusStarted,
		StartedAt:          now,
		EndsAt:             now.Add(duration),
		VerificationStatus: VerificationPending,
		QuestionNonces:     make(map[string]*QuestionNonce),
	}
}

// terminalStatuses cannot transition further except via the restart path.
var terminalStatuses = map[AttemptStatus]bool{
	AttemptStatusCompleted:           true,
	AttemptStatusTimeExpired:         true,
	AttemptStatusViolationTerminated: true,
	AttemptStatusAutoDisqualified:    true,
	AttemptStatusAdminInvalidated:    true,
}

// restartableStatuses permit a fresh start when no progress was made.
var restartableStatuses = map[AttemptStatus]bool{
	AttemptStatusVerificationFailed: true,
	AttemptStatusAutoDisqualified:   true,
	AttemptStatusAdminInvalidated:   true,
}

// IsTerminal reports whether the attempt reached a terminal status.
func (a *Attempt) IsTerminal() bool { return terminalStatuses[a.Status] }

// IsActive reports whether the attempt is in the active exam window.
func (a *Attempt) IsActive() bool { return a.Status == AttemptStatusStarted }

// Progress is the number of answered plus skipped questions.
func (a *Attempt) Progress() int {
	return len(a.AnsweredQuestions) + len(a.SkippedQuestions)
}

// Restartable reports whether the start operation may recycle this attempt:
// a restartable terminal status (or an INVALID trust classification) with
// zero questions answered or skipped.
func (a *Attempt) Restartable() bool {
	if a.Progress() > 0 {
		return false
	}
	return restartableStatuses[a.Status] || a.TrustClass == TrustInvalid
}

// Restart resets every mutable integrity field and re-opens the attempt
// with a fresh full-duration window. Attempt identity is preserved.
func (a *Attempt) Restart(duration time.Duration, now time.Time) error {
	if !a.Restartable() {
		return ErrNotRestartable
	}
	a.Status = AttemptStatusStarted
	a.StartedAt = now
	a.EndsAt = now.Add(duration)
	a.CurrentQuestionIndex = 0
	a.AnsweredQuestions = nil
	a.SkippedQuestions = nil
	a.LockedDeviceFingerprint = ""
	a.DeviceSwitchDetected = false
	a.DeviceSwitchAt = nil
	a.Violations = nil
	a.MissedHeartbeats = 0
	a.LastHeartbeatAt = nil
	a.TrustScore = nil
	a.TrustClass = ""
	a.ScoringBreakdown = nil
	a.VerificationStatus = VerificationPending
	a.VerificationResults = nil
	a.QuestionNonces = make(map[string]*QuestionNonce)
	a.SubmittedAt = nil
	a.PausedAt = nil
	a.PauseReason = ""
	a.InvalidatedAt = nil
	a.InvalidateReason = ""
	a.InvalidatedBy = ""
	a.AdminSubmitted = false
	return nil
}

// ExpireIfDue eagerly transitions a started attempt to TIME_EXPIRED once
// server time passes EndsAt. Returns true if the transition happened.
func (a *Attempt) ExpireIfDue(now time.Time) bool {
	if a.Status == AttemptStatusStarted && !now.Before(a.EndsAt) {
		a.Status = AttemptStatusTimeExpired
		return true
	}
	return false
}

// RecordViolation appends to the violation log. The log is append-only;
// nothing ever rewrites or removes prior entries.
func (a *Attempt) RecordViolation(t ViolationType, details string, now time.Time) {
	a.Violations = append(a.Violations, Violation{Type: t, Timestamp: now, Details: details})
}

// ShouldTerminate reports whether the accumulated violations warrant an
// immediate VIOLATION_TERMINATED transition: any high-severity type, or
// the configured ceiling reached.
func (a *Attempt) ShouldTerminate(maxViolations int) bool {
	if len(a.Violations) >= maxViolations {
		return true
	}
	for i := range a.Violations {
		if a.Violations[i].Type.HighSeverity() {
			return true
		}
	}
	return false
}

// ValidateQuestionAccess enforces the forward-only cursor: only the exact
// current index may be requested or re-submitted.
func (a *Attempt) ValidateQuestionAccess(index int) error {
	if index < a.CurrentQuestionIndex {
		return ErrBackwardNavigation
	}
	if index > a.CurrentQuestionIndex {
		return ErrSkipAhead
	}
	return nil
}

// MarkAnswered records a question as answered and advances the cursor.
// The cursor never decreases.
func (a *Attempt) MarkAnswered(questionID uuid.UUID, index int) {
	if !containsID(a.AnsweredQuestions, questionID) {
		a.AnsweredQuestions = append(a.AnsweredQuestions, questionID)
	}
	if index+1 > a.CurrentQuestionIndex {
		a.CurrentQuestionIndex = index + 1
	}
}

// MarkSkipped records a question as skipped and advances the cursor.
func (a *Attempt) MarkSkipped(questionID uuid.UUID, index int) {
	if !containsID(a.SkippedQuestions, questionID) {
		a.SkippedQuestions = append(a.SkippedQuestions, questionID)
	}
	if index+1 > a.CurrentQuestionIndex {
		a.CurrentQuestionIndex = index + 1
	}
}

// BindDevice locks a fingerprint hash to the attempt. The lock is set at
// most once per attempt lifetime; Restart clears it for a fresh bind.
func (a *Attempt) BindDevice(fingerprintHash string) error {
	if a.LockedDeviceFingerprint != "" {
		return ErrDeviceAlreadyBound
	}
	a.LockedDeviceFingerprint = fingerprintHash
	return nil
}

// RebindDevice replaces the lock. Only legal on resume with zero progress;
// the caller logs the rebind.
func (a *Attempt) RebindDevice(fingerprintHash string) {
	a.LockedDeviceFingerprint = fingerprintHash
}

// FlagDeviceSwitch marks confirmed drift and locks the attempt.
func (a *Attempt) FlagDeviceSwitch(now time.Time) {
	a.DeviceSwitchDetected = true
	t := now
	a.DeviceSwitchAt = &t
	a.Status = AttemptStatusDeviceSwitch
}

// IssueNonce stores a fresh single-use nonce for a question, replacing any
// prior (used or expired) one.
func (a *Attempt) IssueNonce(questionID uuid.UUID, nonce string, ttl time.Duration, now time.Time) *QuestionNonce {
	n := &QuestionNonce{
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if a.QuestionNonces == nil {
		a.QuestionNonces = make(map[string]*QuestionNonce)
	}
	a.QuestionNonces[questionID.String()] = n
	return n
}

// ValidateNonce checks the caller's nonce against the issued one: it must
// exist, match exactly, be unused, and be unexpired.
func (a *Attempt) ValidateNonce(questionID uuid.UUID, nonce string, now time.Time) error {
	issued, ok := a.QuestionNonces[questionID.String()]
	if !ok {
		return ErrNoNonceIssued
	}
	if issued.Used {
		return ErrNonceUsed
	}
	if now.After(issued.ExpiresAt) {
		return ErrNonceExpired
	}
	if issued.Nonce != nonce {
		return ErrNonceMismatch
	}
	return nil
}

// ConsumeNonce marks the question's nonce used. Idempotent; the flag never
// flips back.
func (a *Attempt) ConsumeNonce(questionID uuid.UUID) {
	if n, ok := a.QuestionNonces[questionID.String()]; ok {
		n.Used = true
	}
}

// NonceIssuedAt returns the issue time for a question's nonce, if any.
func (a *Attempt) NonceIssuedAt(questionID uuid.UUID) (time.Time, bool) {
	n, ok := a.QuestionNonces[questionID.String()]
	if !ok {
		return time.Time{}, false
	}
	return n.IssuedAt, true
}

// RecordHeartbeat updates the last-seen marker and returns the gap since
// the previous heartbeat (zero for the first one).
func (a *Attempt) RecordHeartbeat(now time.Time) time.Duration {
	var gap time.Duration
	if a.LastHeartbeatAt != nil {
		gap = now.Sub(*a.LastHeartbeatAt)
	}
	t := now
	a.LastHeartbeatAt = &t
	return gap
}

// Pause suspends a started attempt by explicit proctor action.
func (a *Attempt) Pause(reason string, now time.Time) error {
	if a.Status != AttemptStatusStarted {
		return ErrNotActive
	}
	a.Status = AttemptStatusPaused
	t := now
	a.PausedAt = &t
	a.PauseReason = reason
	return nil
}

// ResumeFromPause re-opens a paused attempt. The clock kept running while
// paused; EndsAt is never recomputed.
func (a *Attempt) ResumeFromPause() error {
	if a.Status != AttemptStatusPaused {
		return ErrNotActive
	}
	a.Status = AttemptStatusStarted
	a.PausedAt = nil
	a.PauseReason = ""
	return nil
}

// Invalidate terminates the attempt by explicit proctor action.
func (a *Attempt) Invalidate(actor, reason string, now time.Time) {
	a.Status = AttemptStatusAdminInvalidated
	t := now
	a.InvalidatedAt = &t
	a.InvalidatedBy = actor
	a.InvalidateReason = reason
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
