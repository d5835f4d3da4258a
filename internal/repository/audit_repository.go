package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provex/proctor-backend/internal/model"
)

// AuditRepository persists audit events. The write path is bulk-first:
// the audit worker drains the Redis queue in batches and lands them with
// COPY, falling back to row-by-row inserts on batch failure.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// BulkInsert lands a batch of events with COPY.
func (r *AuditRepository) BulkInsert(ctx context.Context, events []*model.AuditEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.ID, e.AttemptID, e.ExamID, e.UserID, string(e.Type), e.Actor, e.Detail, e.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"audit_events"},
		[]string{"id", "attempt_id", "exam_id", "user_id", "event_type", "actor", "detail", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert lands a single event. Used by the worker's fallback path.
func (r *AuditRepository) Insert(ctx context.Context, e *model.AuditEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_events (id, attempt_id, exam_id, user_id, event_type, actor, detail, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.AttemptID, e.ExamID, e.UserID, string(e.Type), e.Actor, e.Detail, e.RecordedAt,
	)
	return err
}

// ListByAttempt returns the audit trail for one attempt, oldest first.
func (r *AuditRepository) ListByAttempt(ctx context.Context, attemptID string) ([]model.AuditEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, exam_id, user_id, event_type, actor, detail, recorded_at
		 FROM audit_events WHERE attempt_id = $1 ORDER BY recorded_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.ExamID, &e.UserID, &e.Type, &e.Actor, &e.Detail, &e.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
