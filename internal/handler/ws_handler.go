package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/middleware"
	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/ratelimit"
	"github.com/provex/proctor-backend/internal/service"
	ws "github.com/provex/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the per-attempt integrity channel: heartbeats,
// client violation reports, and authoritative timer sync.
type WSHandler struct {
	attemptService *service.AttemptService
	hub            *ws.Hub
	limiter        *ratelimit.Limiter
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, hub *ws.Hub, limiter *ratelimit.Limiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		hub:            hub,
		limiter:        limiter,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:examId/stream
// Upgrades to WebSocket for heartbeats, violation reports, and timer sync.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("examId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	// Only active attempts get a stream.
	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), claims.UserID, examID)
	if err != nil || !attempt.IsActive() {
		c.JSON(http.StatusConflict, gin.H{"error": "no active attempt for this exam"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID
	connectionID := uuid.New().String()
	clientIP := c.ClientIP()

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("exam_id", examID.String()).
		Str("connection_id", connectionID).
		Logger()

	client := ws.NewClient(conn)
	client.OnTimer = func(ws.TimerResponse) {
		h.sendTimer(context.Background(), client, userID, examID)
	}

	h.hub.Join(examID.String(), client)
	defer func() {
		h.hub.Leave(examID.String(), client)
		// Push the presence entry to durable storage right away instead of
		// waiting for the flush timer.
		h.attemptService.Disconnect(context.Background(), userID, examID, connectionID)
		wsLog.Info().Msg("Student disconnected")
	}()

	wsLog.Info().Msg("Student connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"})
			continue
		}

		if envelope.Action != ws.ActionPing && envelope.Action != ws.ActionHeartbeat &&
			!h.allowMessage(ratelimit.ClassSocket, userID, examID, clientIP) {
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Socket rate limit exceeded")
			client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "rate limit exceeded"})
			continue
		}

		ctx := context.Background()
		switch envelope.Action {
		case ws.ActionHeartbeat:
			// A throttled heartbeat records the violation but is still
			// processed: dropping it would manufacture heartbeat-gap
			// findings against a slow client.
			if !h.allowMessage(ratelimit.ClassHeartbeat, userID, examID, clientIP) {
				wsLog.Warn().Msg("Heartbeat rate limit exceeded")
			}
			if done := h.handleHeartbeat(ctx, client, wsLog, userID, examID, connectionID); done {
				return
			}
		case ws.ActionViolationReport:
			var req ws.ViolationReportRequest
			if err := json.Unmarshal(raw, &req); err != nil || req.Type == "" {
				client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "type is required"})
				continue
			}
			if done := h.handleViolationReport(ctx, client, wsLog, userID, examID, &req); done {
				return
			}
		case ws.ActionTimerSync:
			h.sendTimer(ctx, client, userID, examID)
		case ws.ActionPing:
			client.Send(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(envelope.Action)})
		}
	}
}

// allowMessage applies the class's sliding window. Denials also land as a
// violation on the attempt; callers decide whether the message still gets
// processed.
func (h *WSHandler) allowMessage(class ratelimit.Class, userID int, examID uuid.UUID, clientIP string) bool {
	key := ratelimit.Key{
		Class:     class,
		AttemptID: examID.String(),
		UserID:    userID,
		OriginID:  clientIP,
	}
	if h.limiter.Allow(key, time.Now()) {
		return true
	}
	if _, err := h.attemptService.ReportViolation(context.Background(), userID, examID, model.ViolationRateLimitExceeded, string(class)); err != nil {
		h.log.Debug().Err(err).Msg("Could not record rate limit violation")
	}
	return false
}

// handleHeartbeat records presence. Returns true when the attempt has
// reached a terminal state and the stream must end.
func (h *WSHandler) handleHeartbeat(ctx context.Context, client *ws.Client, wsLog zerolog.Logger, userID int, examID uuid.UUID, connectionID string) bool {
	err := h.attemptService.Heartbeat(ctx, userID, examID, connectionID)
	if err != nil {
		return h.sendAttemptError(client, wsLog, err)
	}
	client.Send(ws.SuccessResponse{Event: ws.EventSuccess, Status: "ok"})
	return false
}

func (h *WSHandler) handleViolationReport(ctx context.Context, client *ws.Client, wsLog zerolog.Logger, userID int, examID uuid.UUID, req *ws.ViolationReportRequest) bool {
	attempt, err := h.attemptService.ReportViolation(ctx, userID, examID, model.ViolationType(req.Type), req.Details)
	if err != nil {
		return h.sendAttemptError(client, wsLog, err)
	}

	client.Send(ws.ViolationAckResponse{
		Event:          ws.EventViolationAck,
		Type:           req.Type,
		ViolationCount: len(attempt.Violations),
	})

	if attempt.IsTerminal() {
		wsLog.Info().Str("status", string(attempt.Status)).Msg("Attempt terminated during stream")
		client.Send(ws.TerminatedResponse{
			Event:  ws.EventTerminated,
			Status: string(attempt.Status),
			Reason: req.Type,
		})
		return true
	}
	return false
}

// sendTimer pushes the server-authoritative clock for the client's own
// attempt.
func (h *WSHandler) sendTimer(ctx context.Context, client *ws.Client, userID int, examID uuid.UUID) {
	attempt, err := h.attemptService.GetAttempt(ctx, userID, examID)
	if err != nil {
		client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "attempt unavailable"})
		return
	}

	client.Send(ws.TimerResponse{
		Event:            ws.EventTimer,
		RemainingSeconds: int64(h.attemptService.RemainingTime(attempt).Seconds()),
		EndsAt:           attempt.EndsAt.UTC().Format(time.RFC3339),
	})
}

// sendAttemptError translates service errors into stream frames. Terminal
// conditions close the stream.
func (h *WSHandler) sendAttemptError(client *ws.Client, wsLog zerolog.Logger, err error) bool {
	var status string
	switch {
	case errors.Is(err, service.ErrTimeExpired):
		status = string(model.AttemptStatusTimeExpired)
	case errors.Is(err, service.ErrAttemptTerminated):
		status = string(model.AttemptStatusViolationTerminated)
	case errors.Is(err, service.ErrDeviceSwitch):
		status = string(model.AttemptStatusDeviceSwitch)
	case errors.Is(err, service.ErrAttemptPaused):
		client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "attempt is paused"})
		return false
	default:
		wsLog.Debug().Err(err).Msg("Stream operation failed")
		client.Send(ws.ErrorResponse{Event: ws.EventError, Error: "operation failed"})
		return false
	}

	wsLog.Info().Str("status", status).Msg("Attempt no longer active, closing stream")
	client.Send(ws.TerminatedResponse{
		Event:  ws.EventTerminated,
		Status: status,
		Reason: "attempt is no longer active",
	})
	return true
}
