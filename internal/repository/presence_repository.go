package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provex/proctor-backend/internal/model"
)

// PresenceRepository persists presence snapshots. The tracker retries a
// whole batch after a reported failure, so the upsert must be idempotent:
// replaying the same entry leaves the row unchanged.
type PresenceRepository struct {
	pool *pgxpool.Pool
}

// NewPresenceRepository creates a new PresenceRepository.
func NewPresenceRepository(pool *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{pool: pool}
}

// BulkUpsert writes a batch of presence entries in one round trip.
func (r *PresenceRepository) BulkUpsert(ctx context.Context, entries []model.PresenceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		batch.Queue(
			`INSERT INTO presence (attempt_id, connection_id, user_id, exam_id, last_seen_at, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (attempt_id, connection_id) DO UPDATE
			 SET last_seen_at = GREATEST(presence.last_seen_at, EXCLUDED.last_seen_at),
			     status = EXCLUDED.status`,
			e.AttemptID, e.ConnectionID, e.UserID, e.ExamID, e.LastSeenAt, e.Status,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert presence: %w", err)
		}
	}
	return nil
}

// ListByExam returns the persisted presence rows for an exam's attempts.
func (r *PresenceRepository) ListByExam(ctx context.Context, examID string) ([]model.PresenceEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, connection_id, user_id, exam_id, last_seen_at, status
		 FROM presence WHERE exam_id = $1 ORDER BY last_seen_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.PresenceEntry
	for rows.Next() {
		var e model.PresenceEntry
		if err := rows.Scan(&e.AttemptID, &e.ConnectionID, &e.UserID, &e.ExamID, &e.LastSeenAt, &e.Status); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
