package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/provex/proctor-backend/internal/model"
)

// Storage-level sentinel errors. Repositories map their driver errors to
// these so services never import a database driver.
var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrExamNotFound    = errors.New("exam not found")
	ErrUserNotFound    = errors.New("user not found")
)

// AttemptStore is the durable store for Attempt aggregates.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	Save(ctx context.Context, a *model.Attempt) error
}

// ExamStore provides the exam reference data the engine needs.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// HeartbeatLog accumulates the ordered heartbeat history per attempt for
// post-attempt continuity verification. Appends are fail-open.
type HeartbeatLog interface {
	Append(ctx context.Context, attemptID uuid.UUID, at time.Time) error
	List(ctx context.Context, attemptID uuid.UUID) ([]time.Time, error)
}
