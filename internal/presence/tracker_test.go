package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]model.PresenceEntry
	err     error
}

func (s *fakeStore) BulkUpsert(ctx context.Context, entries []model.PresenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := make([]model.PresenceEntry, len(entries))
	copy(batch, entries)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *fakeStore) lastBatch() []model.PresenceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func newTestTracker(store Store) *Tracker {
	return NewTracker(store, config.IntegrityConfig{
		PresenceStaleAfter: 90 * time.Second,
		PresenceFlushEvery: 10 * time.Second,
		StoreTimeout:       time.Second,
	}, zerolog.Nop())
}

func TestUpdateCreatesAndRefreshesEntry(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	examID := uuid.New()
	t0 := time.Now()

	tr.Update(attemptID, "conn-1", 42, examID, t0)

	e, ok := tr.Get(attemptID, "conn-1")
	require.True(t, ok)
	assert.Equal(t, 42, e.UserID)
	assert.Equal(t, examID, e.ExamID)
	assert.Equal(t, model.PresenceConnected, e.Status)
	assert.True(t, e.Dirty)
	assert.Equal(t, t0, e.LastSeenAt)

	tr.Update(attemptID, "conn-1", 42, examID, t0.Add(15*time.Second))
	e, ok = tr.Get(attemptID, "conn-1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(15*time.Second), e.LastSeenAt)
	assert.Equal(t, 1, tr.Len())
}

func TestFlushPersistsDirtyEntries(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	t0 := time.Now()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), t0)

	tr.Flush(context.Background(), t0)

	require.Equal(t, 1, store.batchCount())
	require.Len(t, store.lastBatch(), 1)
	assert.Equal(t, "conn-1", store.lastBatch()[0].ConnectionID)

	e, ok := tr.Get(attemptID, "conn-1")
	require.True(t, ok)
	assert.False(t, e.Dirty)

	// Nothing dirty remains; the next flush must not hit the store.
	tr.Flush(context.Background(), t0.Add(time.Second))
	assert.Equal(t, 1, store.batchCount())
}

func TestFlushKeepsDirtyOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	t0 := time.Now()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), t0)

	tr.Flush(context.Background(), t0)

	e, ok := tr.Get(attemptID, "conn-1")
	require.True(t, ok)
	assert.True(t, e.Dirty)

	// Store recovers; the retried batch carries the same entry.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	tr.Flush(context.Background(), t0.Add(time.Second))
	require.Equal(t, 1, store.batchCount())
	assert.Equal(t, "conn-1", store.lastBatch()[0].ConnectionID)
}

func TestFlushEvictsStaleWithoutPersisting(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	t0 := time.Now()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), t0)

	// 90s stale threshold has passed; the entry is evicted, not flushed.
	tr.Flush(context.Background(), t0.Add(2*time.Minute))

	assert.Zero(t, tr.Len())
	assert.Zero(t, store.batchCount())
}

func TestDisconnectFlushesAndRemoves(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	t0 := time.Now()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), t0)

	tr.Disconnect(context.Background(), attemptID, "conn-1", t0.Add(5*time.Second))

	_, ok := tr.Get(attemptID, "conn-1")
	assert.False(t, ok)

	require.Equal(t, 1, store.batchCount())
	batch := store.lastBatch()
	require.Len(t, batch, 1)
	assert.Equal(t, model.PresenceDisconnected, batch[0].Status)
	assert.Equal(t, t0.Add(5*time.Second), batch[0].LastSeenAt)
}

func TestDisconnectUnknownConnectionIsNoop(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	tr.Disconnect(context.Background(), uuid.New(), "conn-x", time.Now())
	assert.Zero(t, store.batchCount())
}

func TestDisconnectRemovesEntryEvenWhenStoreFails(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), time.Now())
	tr.Disconnect(context.Background(), attemptID, "conn-1", time.Now())

	_, ok := tr.Get(attemptID, "conn-1")
	assert.False(t, ok)
}

func TestRunFinalFlushOnCancel(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(store)

	attemptID := uuid.New()
	tr.Update(attemptID, "conn-1", 42, uuid.New(), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	require.Equal(t, 1, store.batchCount())
	assert.Equal(t, "conn-1", store.lastBatch()[0].ConnectionID)
}
