package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/audit"
	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/fingerprint"
	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/presence"
)

// Policy errors surfaced to handlers, which map them to stable codes.
var (
	ErrExamNotAvailable  = errors.New("exam is not available")
	ErrAttemptExists     = errors.New("attempt already exists and is not restartable")
	ErrTimeExpired       = errors.New("attempt time has expired")
	ErrAttemptNotActive  = errors.New("attempt is not active")
	ErrAttemptPaused     = errors.New("attempt is paused")
	ErrAnswerTooFast     = errors.New("answer submitted below the minimum time")
	ErrAnswerTooSlow     = errors.New("answer submitted past the maximum time")
	ErrDeviceMismatch    = errors.New("device fingerprint mismatch")
	ErrDeviceSwitch      = errors.New("device switch detected")
	ErrAttemptTerminated = errors.New("attempt terminated by violations")
	ErrAlreadySubmitted  = errors.New("attempt was already submitted")
)

// heartbeatGapViolationWindow suppresses duplicate heartbeat-gap
// violations: at most one per attempt inside this rolling window.
const heartbeatGapViolationWindow = time.Minute

// AttemptService is the lifecycle authority for exam attempts. Every guard
// component reads and mutates the attempt through it; each mutating
// operation runs as a serialized fetch-update-persist sequence under a
// per-attempt lock.
type AttemptService struct {
	attempts AttemptStore
	exams    ExamStore
	sink     audit.Sink
	hb       HeartbeatLog
	tracker  *presence.Tracker
	scorer   *TrustScorer
	verifier *Verifier
	cfg      config.IntegrityConfig
	log      zerolog.Logger
	locks    *keyedMutex

	now func() time.Time // stubbed in tests
}

// NewAttemptService creates an AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	exams ExamStore,
	sink audit.Sink,
	hb HeartbeatLog,
	tracker *presence.Tracker,
	cfg config.IntegrityConfig,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		exams:    exams,
		sink:     sink,
		hb:       hb,
		tracker:  tracker,
		scorer:   NewTrustScorer(cfg),
		verifier: NewVerifier(),
		cfg:      cfg,
		log:      log.With().Str("component", "attempt_service").Logger(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func attemptLockKey(userID int, examID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", userID, examID)
}

// recordAudit emits an audit event. Audit failures are logged and
// swallowed: they never abort the transition that produced the event.
func (s *AttemptService) recordAudit(ctx context.Context, a *model.Attempt, t model.AuditEventType, actor, detail string) {
	event := model.AuditEvent{
		ID:         uuid.New(),
		AttemptID:  a.ID,
		ExamID:     a.ExamID,
		UserID:     a.UserID,
		Type:       t,
		Actor:      actor,
		Detail:     detail,
		RecordedAt: s.now(),
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("type", string(t)).Str("attempt_id", a.ID.String()).Msg("Audit record failed")
	}
}

// newNonce returns a cryptographically random single-use token.
func newNonce() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; uuid is the
		// fallback entropy source.
		return uuid.New().String() + uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// Start creates (or restarts) the attempt for a (user, exam) pair, binds
// the device fingerprint, and runs the VM heuristic over the reported
// attributes.
func (s *AttemptService) Start(ctx context.Context, userID int, examID uuid.UUID, attrs fingerprint.Attributes) (*model.Attempt, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	now := s.now()

	existing, err := s.attempts.GetByUserAndExam(ctx, userID, examID)
	if err != nil && !errors.Is(err, ErrAttemptNotFound) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	var a *model.Attempt
	restarted := false
	switch {
	case existing == nil:
		a = model.NewAttempt(userID, examID, exam.Duration(), now)
	case existing.Restartable():
		a = existing
		if err := a.Restart(exam.Duration(), now); err != nil {
			return nil, err
		}
		restarted = true
	default:
		return nil, ErrAttemptExists
	}

	hash := fingerprint.Hash(attrs)
	if err := a.BindDevice(hash); err != nil {
		return nil, fmt.Errorf("bind device: %w", err)
	}

	if report := fingerprint.DetectVM(attrs); report.LikelyVM {
		s.log.Warn().
			Int("user_id", userID).
			Str("exam_id", examID.String()).
			Float64("confidence", report.Confidence).
			Msg("Likely VM/emulator detected at attempt start")
		a.RecordViolation(model.ViolationVMDetected,
			fmt.Sprintf("vm heuristic confidence %.2f", report.Confidence), now)
	}

	if restarted {
		if err := s.attempts.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("save attempt: %w", err)
		}
		s.recordAudit(ctx, a, model.AuditAttemptRestarted, "", "")
	} else {
		if err := s.attempts.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		s.recordAudit(ctx, a, model.AuditAttemptStarted, "", "")
	}
	s.recordAudit(ctx, a, model.AuditDeviceBound, "", hash)

	return a, nil
}

// Resume re-validates a started attempt for a returning client. On a
// fingerprint mismatch with zero progress the device is silently rebound
// (logged); with progress, resume is rejected.
func (s *AttemptService) Resume(ctx context.Context, userID int, examID uuid.UUID, attrs fingerprint.Attributes) (*model.Attempt, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	hash := fingerprint.Hash(attrs)
	if a.LockedDeviceFingerprint != hash {
		if a.Progress() > 0 {
			return nil, ErrDeviceMismatch
		}
		a.RebindDevice(hash)
		s.log.Info().
			Int("user_id", userID).
			Str("attempt_id", a.ID.String()).
			Msg("Device rebound on zero-progress resume")
		s.recordAudit(ctx, a, model.AuditDeviceRebound, "", hash)
	}

	if err := s.attempts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditAttemptResumed, "", "")
	return a, nil
}

// AccessQuestion validates forward-only navigation and issues the
// single-use nonce gating the answer for that question.
func (s *AttemptService) AccessQuestion(ctx context.Context, userID int, examID uuid.UUID, questionID uuid.UUID, index int, attrs fingerprint.Attributes) (*model.QuestionNonce, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDevice(ctx, a, attrs); err != nil {
		return nil, err
	}
	if err := a.ValidateQuestionAccess(index); err != nil {
		return nil, err
	}

	nonce := a.IssueNonce(questionID, newNonce(), s.cfg.NonceTTL, s.now())

	// Nonce issuance is integrity-critical: if it cannot be persisted the
	// question must not be served.
	if err := s.attempts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditNonceIssued, "", questionID.String())
	return nonce, nil
}

// SubmitAnswer accepts an answer for the current question. The nonce check
// and the submission time-window check are independent, composable guards:
// either failure records its own violation type and rejects the answer.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID int, examID uuid.UUID, questionID uuid.UUID, index int, nonce string, attrs fingerprint.Attributes) error {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return err
	}
	if err := s.checkDevice(ctx, a, attrs); err != nil {
		return err
	}
	if err := a.ValidateQuestionAccess(index); err != nil {
		return err
	}

	now := s.now()

	// Time-window guard, relative to nonce issuance. Rejection does not
	// consume the nonce: a too-fast client may legitimately retry once the
	// minimum has elapsed.
	if issuedAt, ok := a.NonceIssuedAt(questionID); ok {
		elapsed := now.Sub(issuedAt)
		if elapsed < s.cfg.MinAnswerTime {
			return s.rejectWithViolation(ctx, a, model.ViolationAnswerTooFast,
				fmt.Sprintf("answered %s after issue, minimum %s", elapsed, s.cfg.MinAnswerTime), ErrAnswerTooFast)
		}
		if elapsed > s.cfg.MaxAnswerTime {
			return s.rejectWithViolation(ctx, a, model.ViolationAnswerTooSlow,
				fmt.Sprintf("answered %s after issue, maximum %s", elapsed, s.cfg.MaxAnswerTime), ErrAnswerTooSlow)
		}
	}

	// Replay guard: exact match, unused, unexpired.
	if err := a.ValidateNonce(questionID, nonce, now); err != nil {
		switch {
		case errors.Is(err, model.ErrNoNonceIssued):
			return s.rejectWithViolation(ctx, a, model.ViolationNoNonce, questionID.String(), err)
		case errors.Is(err, model.ErrNonceExpired):
			return s.rejectWithViolation(ctx, a, model.ViolationNonceExpired, questionID.String(), err)
		default: // used or mismatched
			return s.rejectWithViolation(ctx, a, model.ViolationReplayAttempt, questionID.String(), err)
		}
	}

	a.ConsumeNonce(questionID)
	a.MarkAnswered(questionID, index)

	if err := s.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditAnswerAccepted, "", questionID.String())
	return nil
}

// SkipQuestion records a skip for the current question and advances the
// cursor.
func (s *AttemptService) SkipQuestion(ctx context.Context, userID int, examID uuid.UUID, questionID uuid.UUID, index int) error {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return err
	}
	if err := a.ValidateQuestionAccess(index); err != nil {
		return err
	}

	a.MarkSkipped(questionID, index)
	if err := s.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditQuestionSkipped, "", questionID.String())
	return nil
}

// Heartbeat records client presence. The in-memory tracker is the hot
// path; attempt bookkeeping (missed-heartbeat accumulation) piggybacks on
// the same call. Persistence failures are fail-open here; the next
// heartbeat carries the state forward.
func (s *AttemptService) Heartbeat(ctx context.Context, userID int, examID uuid.UUID, connectionID string) error {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return err
	}

	now := s.now()
	s.tracker.Update(a.ID, connectionID, userID, examID, now)
	if err := s.hb.Append(ctx, a.ID, now); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Heartbeat log append failed")
	}

	gap := a.RecordHeartbeat(now)
	if gap > s.cfg.HeartbeatInterval+s.cfg.HeartbeatGrace {
		misses := int(gap/s.cfg.HeartbeatInterval) - 1
		if misses < 1 {
			misses = 1
		}
		a.MissedHeartbeats += misses

		if !s.hasRecentGapViolation(a, now) {
			a.RecordViolation(model.ViolationHeartbeatGap,
				fmt.Sprintf("gap of %s between heartbeats", gap), now)
			s.maybeTerminate(ctx, a)
		}
	}

	if err := s.attempts.Save(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Heartbeat attempt save failed")
	}
	return nil
}

// Disconnect forces the connection's presence entry to durable storage
// immediately instead of waiting for the flush timer.
func (s *AttemptService) Disconnect(ctx context.Context, userID int, examID uuid.UUID, connectionID string) {
	a, err := s.attempts.GetByUserAndExam(ctx, userID, examID)
	if err != nil {
		return
	}
	s.tracker.Disconnect(ctx, a.ID, connectionID, s.now())
}

// ReportViolation ingests a client proctoring report or a server guard
// finding. High-severity types and the violation ceiling terminate the
// attempt immediately.
func (s *AttemptService) ReportViolation(ctx context.Context, userID int, examID uuid.UUID, vtype model.ViolationType, details string) (*model.Attempt, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	a.RecordViolation(vtype, details, s.now())
	s.maybeTerminate(ctx, a)

	if err := s.attempts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditViolationRecorded, "", string(vtype))
	return a, nil
}

// Submit finalizes the attempt: runs post-attempt verification and the
// trust scorer exactly once, then freezes the attempt at its terminal
// status.
func (s *AttemptService) Submit(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.loadActive(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	if err := s.finalize(ctx, a, ""); err != nil {
		return nil, err
	}
	return a, nil
}

// finalize runs the one-shot submission pipeline. Caller holds the
// per-attempt lock and has verified the attempt is active.
func (s *AttemptService) finalize(ctx context.Context, a *model.Attempt, actor string) error {
	if a.SubmittedAt != nil {
		return ErrAlreadySubmitted
	}

	exam, err := s.exams.GetByID(ctx, a.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	now := s.now()
	submitted := now
	a.SubmittedAt = &submitted
	a.Status = model.AttemptStatusCompleted

	heartbeats, err := s.hb.List(ctx, a.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Heartbeat history unavailable for verification")
	}

	results, passed := s.verifier.Verify(a, exam.Duration(), heartbeats, submitted)
	a.VerificationResults = &results
	if passed {
		a.VerificationStatus = model.VerificationPassed
	} else {
		a.VerificationStatus = model.VerificationFailed
		a.Status = model.AttemptStatusVerificationFailed
	}
	s.recordAudit(ctx, a, model.AuditVerificationRun, actor, string(a.VerificationStatus))

	score, class, breakdown := s.scorer.Score(a)
	a.TrustScore = &score
	a.TrustClass = class
	a.ScoringBreakdown = breakdown
	s.recordAudit(ctx, a, model.AuditTrustScored, actor, fmt.Sprintf("score=%.2f class=%s", score, class))

	// Trust disqualification outranks verification failure.
	if class == model.TrustInvalid {
		a.Status = model.AttemptStatusAutoDisqualified
	}

	if err := s.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditAttemptSubmitted, actor, string(a.Status))
	return nil
}

// GetAttempt loads the attempt for state queries, applying eager expiry.
func (s *AttemptService) GetAttempt(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	unlock := s.locks.Lock(attemptLockKey(userID, examID))
	defer unlock()

	a, err := s.attempts.GetByUserAndExam(ctx, userID, examID)
	if err != nil {
		return nil, err
	}
	if a.ExpireIfDue(s.now()) {
		if err := s.attempts.Save(ctx, a); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Eager expiry save failed")
		}
		s.recordAudit(ctx, a, model.AuditAttemptExpired, "", "")
	}
	return a, nil
}

// RemainingTime returns the attempt's remaining window for timer sync.
func (s *AttemptService) RemainingTime(a *model.Attempt) time.Duration {
	remaining := a.EndsAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ─── Emergency proctor controls ─────────────────────────────────────────

// Pause suspends a started attempt by proctor action.
func (s *AttemptService) Pause(ctx context.Context, attemptID uuid.UUID, actor, reason string) (*model.Attempt, error) {
	return s.proctorOp(ctx, attemptID, func(a *model.Attempt) error {
		if err := a.Pause(reason, s.now()); err != nil {
			return err
		}
		s.recordAudit(ctx, a, model.AuditAttemptPaused, actor, reason)
		return nil
	})
}

// Unpause re-opens a paused attempt.
func (s *AttemptService) Unpause(ctx context.Context, attemptID uuid.UUID, actor string) (*model.Attempt, error) {
	return s.proctorOp(ctx, attemptID, func(a *model.Attempt) error {
		if err := a.ResumeFromPause(); err != nil {
			return err
		}
		s.recordAudit(ctx, a, model.AuditAttemptUnpaused, actor, "")
		return nil
	})
}

// Invalidate terminates an attempt by proctor action.
func (s *AttemptService) Invalidate(ctx context.Context, attemptID uuid.UUID, actor, reason string) (*model.Attempt, error) {
	return s.proctorOp(ctx, attemptID, func(a *model.Attempt) error {
		a.Invalidate(actor, reason, s.now())
		s.recordAudit(ctx, a, model.AuditAttemptInvalid, actor, reason)
		return nil
	})
}

// ForceSubmit submits on the student's behalf and runs the normal
// finalization pipeline.
func (s *AttemptService) ForceSubmit(ctx context.Context, attemptID uuid.UUID, actor string) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(attemptLockKey(a.UserID, a.ExamID))
	defer unlock()

	// Reload under the lock; another operation may have advanced it.
	a, err = s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive() && a.Status != model.AttemptStatusPaused {
		return nil, ErrAttemptNotActive
	}

	a.AdminSubmitted = true
	a.Status = model.AttemptStatusStarted // unpause implicitly for finalization
	if err := s.finalize(ctx, a, actor); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, a, model.AuditForceSubmitted, actor, "")
	return a, nil
}

func (s *AttemptService) proctorOp(ctx context.Context, attemptID uuid.UUID, mutate func(*model.Attempt) error) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(attemptLockKey(a.UserID, a.ExamID))
	defer unlock()

	a, err = s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := mutate(a); err != nil {
		return nil, err
	}
	if err := s.attempts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	return a, nil
}

// ─── Internal helpers ───────────────────────────────────────────────────

// loadActive loads the attempt, applies eager expiry, and rejects every
// non-active status with its specific error.
func (s *AttemptService) loadActive(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetByUserAndExam(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	if a.ExpireIfDue(s.now()) {
		if saveErr := s.attempts.Save(ctx, a); saveErr != nil {
			s.log.Warn().Err(saveErr).Str("attempt_id", a.ID.String()).Msg("Eager expiry save failed")
		}
		s.recordAudit(ctx, a, model.AuditAttemptExpired, "", "")
		return nil, ErrTimeExpired
	}

	switch a.Status {
	case model.AttemptStatusStarted:
		return a, nil
	case model.AttemptStatusPaused:
		return nil, ErrAttemptPaused
	case model.AttemptStatusTimeExpired:
		return nil, ErrTimeExpired
	case model.AttemptStatusDeviceSwitch:
		return nil, ErrDeviceSwitch
	case model.AttemptStatusViolationTerminated:
		return nil, ErrAttemptTerminated
	default:
		return nil, ErrAttemptNotActive
	}
}

// checkDevice recomputes the fingerprint hash and compares it against the
// locked one. Confirmed drift with progress locks the attempt; drift with
// zero progress rebinds silently (logged). A request without attributes
// carries no fingerprint and is not drift.
func (s *AttemptService) checkDevice(ctx context.Context, a *model.Attempt, attrs fingerprint.Attributes) error {
	if len(attrs) == 0 || a.LockedDeviceFingerprint == "" {
		return nil
	}
	hash := fingerprint.Hash(attrs)
	if hash == a.LockedDeviceFingerprint {
		return nil
	}

	if a.Progress() == 0 {
		a.RebindDevice(hash)
		s.log.Info().Str("attempt_id", a.ID.String()).Msg("Device rebound on zero-progress request")
		s.recordAudit(ctx, a, model.AuditDeviceRebound, "", hash)
		return nil
	}

	now := s.now()
	a.FlagDeviceSwitch(now)
	a.RecordViolation(model.ViolationDeviceSwitch,
		fmt.Sprintf("bound %s observed %s", shortHash(a.LockedDeviceFingerprint), shortHash(hash)), now)

	// Locking the attempt is integrity-critical; the save must land.
	if err := s.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditDeviceSwitch, "", "")
	return ErrDeviceSwitch
}

// rejectWithViolation appends the violation, applies the termination
// ceiling, persists, and returns the wrapped policy error.
func (s *AttemptService) rejectWithViolation(ctx context.Context, a *model.Attempt, vtype model.ViolationType, details string, cause error) error {
	a.RecordViolation(vtype, details, s.now())
	s.maybeTerminate(ctx, a)

	if err := s.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.recordAudit(ctx, a, model.AuditViolationRecorded, "", string(vtype))
	return cause
}

// maybeTerminate applies the high-severity and ceiling rules after a
// violation was appended. Caller persists.
func (s *AttemptService) maybeTerminate(ctx context.Context, a *model.Attempt) {
	if a.Status != model.AttemptStatusStarted {
		return
	}
	if a.ShouldTerminate(s.cfg.MaxViolations) {
		a.Status = model.AttemptStatusViolationTerminated
		s.recordAudit(ctx, a, model.AuditAttemptTerminated, "",
			fmt.Sprintf("%d violations", len(a.Violations)))
	}
}

// hasRecentGapViolation scans the log tail for a heartbeat-gap violation
// inside the suppression window.
func (s *AttemptService) hasRecentGapViolation(a *model.Attempt, now time.Time) bool {
	for i := len(a.Violations) - 1; i >= 0; i-- {
		v := &a.Violations[i]
		if now.Sub(v.Timestamp) > heartbeatGapViolationWindow {
			return false
		}
		if v.Type == model.ViolationHeartbeatGap {
			return true
		}
	}
	return false
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
