package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/fingerprint"
	"github.com/provex/proctor-backend/internal/middleware"
	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/presence"
	"github.com/provex/proctor-backend/internal/ratelimit"
	"github.com/provex/proctor-backend/internal/service"
	ws "github.com/provex/proctor-backend/internal/websocket"
)

// ─── Stub stores ─────────────────────────────────────────────────────────

type stubAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
}

func newStubAttemptStore() *stubAttemptStore {
	return &stubAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (s *stubAttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, service.ErrAttemptNotFound
	}
	return a, nil
}

func (s *stubAttemptStore) GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.ExamID == examID {
			return a, nil
		}
	}
	return nil, service.ErrAttemptNotFound
}

func (s *stubAttemptStore) Create(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
	return nil
}

func (s *stubAttemptStore) Save(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
	return nil
}

type stubExamStore struct {
	exam *model.Exam
}

func (s *stubExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	if s.exam == nil || s.exam.ID != id {
		return nil, service.ErrExamNotFound
	}
	return s.exam, nil
}

type stubHeartbeatLog struct {
	mu      sync.Mutex
	history map[uuid.UUID][]time.Time
}

func newStubHeartbeatLog() *stubHeartbeatLog {
	return &stubHeartbeatLog{history: make(map[uuid.UUID][]time.Time)}
}

func (l *stubHeartbeatLog) Append(ctx context.Context, attemptID uuid.UUID, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[attemptID] = append(l.history[attemptID], at)
	return nil
}

func (l *stubHeartbeatLog) List(ctx context.Context, attemptID uuid.UUID) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history[attemptID], nil
}

func (l *stubHeartbeatLog) count(attemptID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history[attemptID])
}

type stubSink struct{}

func (stubSink) Record(ctx context.Context, event model.AuditEvent) error { return nil }

type stubPresenceStore struct{}

func (stubPresenceStore) BulkUpsert(ctx context.Context, entries []model.PresenceEntry) error {
	return nil
}

// ─── Stream fixture ──────────────────────────────────────────────────────

type streamFixture struct {
	svc     *service.AttemptService
	store   *stubAttemptStore
	hb      *stubHeartbeatLog
	limiter *ratelimit.Limiter
	examID  uuid.UUID
	server  *httptest.Server
}

func newStreamFixture(t *testing.T, rl config.RateLimitConfig) *streamFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.IntegrityConfig{
		HeartbeatInterval:  5 * time.Second,
		HeartbeatGrace:     15 * time.Second,
		PresenceStaleAfter: time.Minute,
		PresenceFlushEvery: 20 * time.Second,
		StoreTimeout:       time.Second,
		NonceTTL:           10 * time.Minute,
		MinAnswerTime:      5 * time.Second,
		MaxAnswerTime:      10 * time.Minute,
		MaxViolations:      5,
		TrustInvalidMax:    30,
		TrustSuspiciousMax: 60,
	}

	examID := uuid.New()
	store := newStubAttemptStore()
	hb := newStubHeartbeatLog()
	tracker := presence.NewTracker(stubPresenceStore{}, cfg, zerolog.Nop())
	svc := service.NewAttemptService(store, &stubExamStore{exam: &model.Exam{
		ID: examID, Title: "Final", Status: model.ExamStatusPublished, DurationSeconds: 3600,
	}}, stubSink{}, hb, tracker, cfg, zerolog.Nop())

	limiter := ratelimit.New(rl)
	t.Cleanup(limiter.Close)

	hub := ws.NewHub(nil, zerolog.Nop())
	wsHandler := NewWSHandler(svc, hub, limiter, zerolog.Nop(), nil)

	router := gin.New()
	router.GET("/ws/v1/student/exams/:examId/stream", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{
			TokenType: service.TokenTypeStudent,
			UserID:    42,
		})
		c.Next()
	}, wsHandler.AttemptStream)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &streamFixture{svc: svc, store: store, hb: hb, limiter: limiter, examID: examID, server: server}
}

func (f *streamFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/v1/student/exams/" + f.examID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func (f *streamFixture) attempt(t *testing.T) *model.Attempt {
	t.Helper()
	a, err := f.store.GetByUserAndExam(context.Background(), 42, f.examID)
	require.NoError(t, err)
	return a
}

// ─── Tests ───────────────────────────────────────────────────────────────

func TestAttemptStreamThrottledHeartbeatStillProcessed(t *testing.T) {
	f := newStreamFixture(t, config.RateLimitConfig{
		HeartbeatPerWindow: 1,
		SocketPerWindow:    100,
		Window:             time.Minute,
	})

	_, err := f.svc.Start(context.Background(), 42, f.examID, fingerprint.Attributes{"user_agent": "chrome"})
	require.NoError(t, err)

	conn := f.dial(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(ws.HeartbeatRequest{Action: ws.ActionHeartbeat}))
	}

	// Both heartbeats come back acknowledged, including the throttled one.
	for i := 0; i < 2; i++ {
		frame := readFrame(t, conn)
		assert.Equal(t, string(ws.EventSuccess), frame["event"], "heartbeat %d", i+1)
	}

	a := f.attempt(t)
	assert.Equal(t, 2, f.hb.count(a.ID))

	// The throttle itself is not silent: it lands as a violation.
	require.Len(t, a.Violations, 1)
	assert.Equal(t, model.ViolationRateLimitExceeded, a.Violations[0].Type)
	assert.Equal(t, string(ratelimit.ClassHeartbeat), a.Violations[0].Details)
}

func TestAttemptStreamSocketLimitDropsMessage(t *testing.T) {
	f := newStreamFixture(t, config.RateLimitConfig{
		HeartbeatPerWindow: 100,
		SocketPerWindow:    1,
		Window:             time.Minute,
	})

	_, err := f.svc.Start(context.Background(), 42, f.examID, fingerprint.Attributes{"user_agent": "chrome"})
	require.NoError(t, err)

	conn := f.dial(t)
	report := ws.ViolationReportRequest{Action: ws.ActionViolationReport, Type: string(model.ViolationTabSwitch)}

	require.NoError(t, conn.WriteJSON(report))
	frame := readFrame(t, conn)
	assert.Equal(t, string(ws.EventViolationAck), frame["event"])

	require.NoError(t, conn.WriteJSON(report))
	frame = readFrame(t, conn)
	assert.Equal(t, string(ws.EventError), frame["event"])

	// One tab switch made it through; the dropped report shows up as the
	// rate-limit violation instead.
	a := f.attempt(t)
	require.Len(t, a.Violations, 2)
	assert.Equal(t, model.ViolationTabSwitch, a.Violations[0].Type)
	assert.Equal(t, model.ViolationRateLimitExceeded, a.Violations[1].Type)
}

func TestAttemptStreamHeartbeatExemptFromSocketClass(t *testing.T) {
	f := newStreamFixture(t, config.RateLimitConfig{
		HeartbeatPerWindow: 100,
		SocketPerWindow:    1,
		Window:             time.Minute,
	})

	_, err := f.svc.Start(context.Background(), 42, f.examID, fingerprint.Attributes{"user_agent": "chrome"})
	require.NoError(t, err)

	conn := f.dial(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(ws.HeartbeatRequest{Action: ws.ActionHeartbeat}))
	}
	for i := 0; i < 3; i++ {
		frame := readFrame(t, conn)
		assert.Equal(t, string(ws.EventSuccess), frame["event"], "heartbeat %d", i+1)
	}

	a := f.attempt(t)
	assert.Equal(t, 3, f.hb.count(a.ID))
	assert.Empty(t, a.Violations)
}
