package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/model"
)

// Sink records audit events. Recording is fire-and-forget from the
// caller's perspective: the returned error exists so callers can log it,
// never so they can propagate it.
type Sink interface {
	Record(ctx context.Context, event model.AuditEvent) error
}

// RedisSink queues events onto a Redis list; a background worker drains
// the queue into PostgreSQL in bulk. Queueing keeps the request path off
// the database entirely.
type RedisSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisSink creates a RedisSink.
func NewRedisSink(rdb *redis.Client, log zerolog.Logger) *RedisSink {
	return &RedisSink{
		rdb: rdb,
		log: log.With().Str("component", "audit_sink").Logger(),
	}
}

// Record serializes the event and pushes it onto the persistence queue.
func (s *RedisSink) Record(ctx context.Context, event model.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.AuditEventsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue audit event: %w", err)
	}
	return nil
}
