package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/service"
)

// AttemptRepository persists Attempt aggregates. Scalar lifecycle fields
// map to columns so proctor queries can filter on them; the nested
// integrity state (violation log, nonces, breakdown) rides in JSONB.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// attemptState is the JSONB document holding the aggregate's nested state.
type attemptState struct {
	AnsweredQuestions   []uuid.UUID                      `json:"answered_questions"`
	SkippedQuestions    []uuid.UUID                      `json:"skipped_questions"`
	Violations          []model.Violation                `json:"violations"`
	QuestionNonces      map[string]*model.QuestionNonce  `json:"question_nonces"`
	ScoringBreakdown    *model.ScoreBreakdown            `json:"scoring_breakdown,omitempty"`
	VerificationResults *model.VerificationResults       `json:"verification_results,omitempty"`
}

const attemptColumns = `
	id, user_id, exam_id, status, started_at, ends_at,
	current_question_index, locked_device_fingerprint,
	device_switch_detected, device_switch_at,
	missed_heartbeats, last_heartbeat_at,
	trust_score, trust_classification, verification_status,
	submitted_at, paused_at, pause_reason,
	invalidated_at, invalidate_reason, invalidated_by, admin_submitted,
	state`

// GetByID loads one attempt by primary key.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)
	return scanAttempt(row)
}

// GetByUserAndExam loads the unique attempt for a (user, exam) pair.
func (r *AttemptRepository) GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id = $1 AND exam_id = $2`, userID, examID)
	return scanAttempt(row)
}

// Create inserts a new attempt. The (user_id, exam_id) unique constraint
// enforces one attempt per pair.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	state, err := marshalState(a)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts (
			id, user_id, exam_id, status, started_at, ends_at,
			current_question_index, locked_device_fingerprint,
			device_switch_detected, device_switch_at,
			missed_heartbeats, last_heartbeat_at,
			trust_score, trust_classification, verification_status,
			submitted_at, paused_at, pause_reason,
			invalidated_at, invalidate_reason, invalidated_by, admin_submitted,
			state
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		a.ID, a.UserID, a.ExamID, a.Status, a.StartedAt, a.EndsAt,
		a.CurrentQuestionIndex, nullStr(a.LockedDeviceFingerprint),
		a.DeviceSwitchDetected, a.DeviceSwitchAt,
		a.MissedHeartbeats, a.LastHeartbeatAt,
		a.TrustScore, nullStr(string(a.TrustClass)), a.VerificationStatus,
		a.SubmittedAt, a.PausedAt, nullStr(a.PauseReason),
		a.InvalidatedAt, nullStr(a.InvalidateReason), nullStr(a.InvalidatedBy), a.AdminSubmitted,
		state,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Save writes the full aggregate back. Attempt mutation is serialized per
// attempt id upstream, so last-writer-wins on the whole row is safe here.
func (r *AttemptRepository) Save(ctx context.Context, a *model.Attempt) error {
	state, err := marshalState(a)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET
			status = $2, started_at = $3, ends_at = $4,
			current_question_index = $5, locked_device_fingerprint = $6,
			device_switch_detected = $7, device_switch_at = $8,
			missed_heartbeats = $9, last_heartbeat_at = $10,
			trust_score = $11, trust_classification = $12, verification_status = $13,
			submitted_at = $14, paused_at = $15, pause_reason = $16,
			invalidated_at = $17, invalidate_reason = $18, invalidated_by = $19,
			admin_submitted = $20, state = $21, updated_at = NOW()
		 WHERE id = $1`,
		a.ID,
		a.Status, a.StartedAt, a.EndsAt,
		a.CurrentQuestionIndex, nullStr(a.LockedDeviceFingerprint),
		a.DeviceSwitchDetected, a.DeviceSwitchAt,
		a.MissedHeartbeats, a.LastHeartbeatAt,
		a.TrustScore, nullStr(string(a.TrustClass)), a.VerificationStatus,
		a.SubmittedAt, a.PausedAt, nullStr(a.PauseReason),
		a.InvalidatedAt, nullStr(a.InvalidateReason), nullStr(a.InvalidatedBy),
		a.AdminSubmitted, state,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAttemptNotFound
	}
	return nil
}

// ListByExam returns all attempts for an exam, newest first. Used by the
// proctor dashboard.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE exam_id = $1 ORDER BY started_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.Attempt, error) {
	var (
		a          model.Attempt
		fp         *string
		trustClass *string
		pauseWhy   *string
		invWhy     *string
		invBy      *string
		stateRaw   []byte
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.ExamID, &a.Status, &a.StartedAt, &a.EndsAt,
		&a.CurrentQuestionIndex, &fp,
		&a.DeviceSwitchDetected, &a.DeviceSwitchAt,
		&a.MissedHeartbeats, &a.LastHeartbeatAt,
		&a.TrustScore, &trustClass, &a.VerificationStatus,
		&a.SubmittedAt, &a.PausedAt, &pauseWhy,
		&a.InvalidatedAt, &invWhy, &invBy, &a.AdminSubmitted,
		&stateRaw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAttemptNotFound
		}
		return nil, err
	}

	if fp != nil {
		a.LockedDeviceFingerprint = *fp
	}
	if trustClass != nil {
		a.TrustClass = model.TrustClassification(*trustClass)
	}
	if pauseWhy != nil {
		a.PauseReason = *pauseWhy
	}
	if invWhy != nil {
		a.InvalidateReason = *invWhy
	}
	if invBy != nil {
		a.InvalidatedBy = *invBy
	}

	var state attemptState
	if len(stateRaw) > 0 {
		if err := json.Unmarshal(stateRaw, &state); err != nil {
			return nil, fmt.Errorf("unmarshal attempt state: %w", err)
		}
	}
	a.AnsweredQuestions = state.AnsweredQuestions
	a.SkippedQuestions = state.SkippedQuestions
	a.Violations = state.Violations
	a.QuestionNonces = state.QuestionNonces
	if a.QuestionNonces == nil {
		a.QuestionNonces = make(map[string]*model.QuestionNonce)
	}
	a.ScoringBreakdown = state.ScoringBreakdown
	a.VerificationResults = state.VerificationResults

	return &a, nil
}

func marshalState(a *model.Attempt) ([]byte, error) {
	state := attemptState{
		AnsweredQuestions:   a.AnsweredQuestions,
		SkippedQuestions:    a.SkippedQuestions,
		Violations:          a.Violations,
		QuestionNonces:      a.QuestionNonces,
		ScoringBreakdown:    a.ScoringBreakdown,
		VerificationResults: a.VerificationResults,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt state: %w", err)
	}
	return data, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
