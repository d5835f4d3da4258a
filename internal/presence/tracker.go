package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/model"
)

// Store is the durable side of the tracker. Upserts must be idempotent:
// the tracker retries a whole batch after a reported failure, so the same
// entry may arrive twice.
type Store interface {
	BulkUpsert(ctx context.Context, entries []model.PresenceEntry) error
}

// Tracker keeps the authoritative in-memory map of live connections. Every
// heartbeat lands here; a background timer batches dirty entries into the
// Store so heartbeats never pay a per-request write.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*model.PresenceEntry

	store Store
	log   zerolog.Logger

	staleAfter   time.Duration
	flushEvery   time.Duration
	storeTimeout time.Duration
}

// NewTracker creates a Tracker. Call Run in a goroutine to start the
// flush loop.
func NewTracker(store Store, cfg config.IntegrityConfig, log zerolog.Logger) *Tracker {
	return &Tracker{
		entries:      make(map[string]*model.PresenceEntry),
		store:        store,
		log:          log.With().Str("component", "presence_tracker").Logger(),
		staleAfter:   cfg.PresenceStaleAfter,
		flushEvery:   cfg.PresenceFlushEvery,
		storeTimeout: cfg.StoreTimeout,
	}
}

func entryKey(attemptID uuid.UUID, connectionID string) string {
	return fmt.Sprintf("%s:%s", attemptID, connectionID)
}

// Update records a heartbeat for a connection, creating the entry if the
// connection is new or was evicted; entries are reconstructible from the
// next heartbeat.
func (t *Tracker) Update(attemptID uuid.UUID, connectionID string, userID int, examID uuid.UUID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := entryKey(attemptID, connectionID)
	e, ok := t.entries[key]
	if !ok {
		e = &model.PresenceEntry{
			AttemptID:    attemptID,
			ConnectionID: connectionID,
			UserID:       userID,
			ExamID:       examID,
		}
		t.entries[key] = e
	}
	e.LastSeenAt = now
	e.Status = model.PresenceConnected
	e.Dirty = true
}

// Get returns a copy of the entry for a connection, if present.
func (t *Tracker) Get(attemptID uuid.UUID, connectionID string) (model.PresenceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[entryKey(attemptID, connectionID)]
	if !ok {
		return model.PresenceEntry{}, false
	}
	return *e, true
}

// Disconnect synchronously marks the connection disconnected, flushes that
// single entry out-of-band, and removes it. It does not wait for the next
// timer tick.
func (t *Tracker) Disconnect(ctx context.Context, attemptID uuid.UUID, connectionID string, now time.Time) {
	key := entryKey(attemptID, connectionID)

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.Status = model.PresenceDisconnected
	e.LastSeenAt = now
	snapshot := *e
	delete(t.entries, key)
	t.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, t.storeTimeout)
	defer cancel()
	if err := t.store.BulkUpsert(flushCtx, []model.PresenceEntry{snapshot}); err != nil {
		// Fail-open: the entry is gone either way; the durable record will
		// show the last successful flush.
		t.log.Warn().Err(err).Str("connection_id", connectionID).Msg("Disconnect flush failed")
	}
}

// Run drives the periodic flush until ctx is cancelled, then performs a
// final flush so in-flight dirty entries survive shutdown.
func (t *Tracker) Run(ctx context.Context) {
	t.log.Info().Dur("every", t.flushEvery).Msg("Presence flush loop started")
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), t.storeTimeout)
			t.Flush(finalCtx, time.Now())
			cancel()
			t.log.Info().Msg("Presence flush loop stopped")
			return
		case now := <-ticker.C:
			flushCtx, cancel := context.WithTimeout(ctx, t.storeTimeout)
			t.Flush(flushCtx, now)
			cancel()
		}
	}
}

// Flush performs one tick: evict stale entries without persisting them,
// then batch-upsert a snapshot of all dirty entries. On success, dirty is
// cleared on exactly the flushed entries; an entry mutated concurrently
// during the flush keeps its dirty flag. On failure, everything stays
// dirty for the next tick.
func (t *Tracker) Flush(ctx context.Context, now time.Time) {
	t.mu.Lock()
	cutoff := now.Add(-t.staleAfter)
	for key, e := range t.entries {
		if e.LastSeenAt.Before(cutoff) {
			delete(t.entries, key)
		}
	}

	type flushed struct {
		key      string
		lastSeen time.Time
		status   model.PresenceStatus
	}
	var batch []model.PresenceEntry
	var marks []flushed
	for key, e := range t.entries {
		if !e.Dirty {
			continue
		}
		batch = append(batch, *e)
		marks = append(marks, flushed{key: key, lastSeen: e.LastSeenAt, status: e.Status})
	}
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := t.store.BulkUpsert(ctx, batch); err != nil {
		t.log.Warn().Err(err).Int("count", len(batch)).Msg("Presence flush failed, will retry next tick")
		return
	}

	t.mu.Lock()
	for _, m := range marks {
		if e, ok := t.entries[m.key]; ok && e.LastSeenAt.Equal(m.lastSeen) && e.Status == m.status {
			e.Dirty = false
		}
	}
	t.mu.Unlock()

	t.log.Debug().Int("count", len(batch)).Msg("Presence flushed")
}

// Len returns the number of live entries. Used by monitoring.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
