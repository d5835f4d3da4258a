package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// heartbeatLogTTL bounds how long a heartbeat history outlives its
// attempt. The history is only read once, at submission.
const heartbeatLogTTL = 6 * time.Hour

// HeartbeatLogRepository keeps the per-attempt heartbeat history in a
// Redis list of unix-millisecond timestamps. Appends are the hot path and
// cost one RPUSH; the full history is read once at submission for
// continuity verification.
type HeartbeatLogRepository struct {
	rdb *redis.Client
}

// NewHeartbeatLogRepository creates a new HeartbeatLogRepository.
func NewHeartbeatLogRepository(rdb *redis.Client) *HeartbeatLogRepository {
	return &HeartbeatLogRepository{rdb: rdb}
}

func heartbeatKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:heartbeats", attemptID)
}

// Append records one heartbeat timestamp.
func (r *HeartbeatLogRepository) Append(ctx context.Context, attemptID uuid.UUID, at time.Time) error {
	key := heartbeatKey(attemptID)
	pipe := r.rdb.Pipeline()
	pipe.RPush(ctx, key, at.UnixMilli())
	pipe.Expire(ctx, key, heartbeatLogTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append heartbeat: %w", err)
	}
	return nil
}

// List returns the ordered heartbeat history for an attempt.
func (r *HeartbeatLogRepository) List(ctx context.Context, attemptID uuid.UUID) ([]time.Time, error) {
	values, err := r.rdb.LRange(ctx, heartbeatKey(attemptID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read heartbeat log: %w", err)
	}

	times := make([]time.Time, 0, len(values))
	for _, v := range values {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue // skip malformed entries rather than fail verification
		}
		times = append(times, time.UnixMilli(ms))
	}
	return times, nil
}
