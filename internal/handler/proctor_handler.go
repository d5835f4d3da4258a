package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/middleware"
	"github.com/provex/proctor-backend/internal/repository"
	"github.com/provex/proctor-backend/internal/response"
	"github.com/provex/proctor-backend/internal/service"
	"github.com/provex/proctor-backend/internal/validator"
	ws "github.com/provex/proctor-backend/internal/websocket"
)

// ProctorHandler exposes the proctor's view over attempts plus the
// emergency controls.
type ProctorHandler struct {
	attemptService *service.AttemptService
	attempts       *repository.AttemptRepository
	auditEvents    *repository.AuditRepository
	presence       *repository.PresenceRepository
	hub            *ws.Hub
	log            zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(
	attemptService *service.AttemptService,
	attempts *repository.AttemptRepository,
	auditEvents *repository.AuditRepository,
	presence *repository.PresenceRepository,
	hub *ws.Hub,
	log zerolog.Logger,
) *ProctorHandler {
	return &ProctorHandler{
		attemptService: attemptService,
		attempts:       attempts,
		auditEvents:    auditEvents,
		presence:       presence,
		hub:            hub,
		log:            log.With().Str("component", "proctor_handler").Logger(),
	}
}

type pauseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type invalidateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListAttempts godoc
// GET /api/v1/proctor/exams/:examId/attempts
// Returns every attempt of the exam with its integrity fields.
func (h *ProctorHandler) ListAttempts(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	attempts, err := h.attempts.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/proctor/attempts/:attemptId
func (h *ProctorHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	attempt, err := h.attempts.GetByID(c.Request.Context(), attemptID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAuditTrail godoc
// GET /api/v1/proctor/attempts/:attemptId/audit
// Returns the attempt's ordered audit trail.
func (h *ProctorHandler) GetAuditTrail(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	events, err := h.auditEvents.ListByAttempt(c.Request.Context(), attemptID.String())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// GetPresence godoc
// GET /api/v1/proctor/exams/:examId/presence
// Returns the last flushed presence snapshot for the exam.
func (h *ProctorHandler) GetPresence(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	entries, err := h.presence.ListByExam(c.Request.Context(), examID.String())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"presence": entries})
}

// PauseAttempt godoc
// POST /api/v1/proctor/attempts/:attemptId/pause
func (h *ProctorHandler) PauseAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req pauseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Pause(c.Request.Context(), attemptID, proctorActor(c), req.Reason)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// UnpauseAttempt godoc
// POST /api/v1/proctor/attempts/:attemptId/unpause
func (h *ProctorHandler) UnpauseAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Unpause(c.Request.Context(), attemptID, proctorActor(c))
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// InvalidateAttempt godoc
// POST /api/v1/proctor/attempts/:attemptId/invalidate
func (h *ProctorHandler) InvalidateAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req invalidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Invalidate(c.Request.Context(), attemptID, proctorActor(c), req.Reason)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ForceSubmitAttempt godoc
// POST /api/v1/proctor/attempts/:attemptId/force-submit
// Submits on the student's behalf through the normal finalization
// pipeline, so the attempt still gets verified and scored.
func (h *ProctorHandler) ForceSubmitAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.ForceSubmit(c.Request.Context(), attemptID, proctorActor(c))
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// BroadcastTimerSync godoc
// POST /api/v1/proctor/exams/:examId/timer-sync
// Pushes a resync trigger to every connected client of the exam. Each
// client's handler recomputes its own authoritative remaining time.
func (h *ProctorHandler) BroadcastTimerSync(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	frame := ws.TimerResponse{Event: ws.EventTimer}
	if err := h.hub.PublishTimer(c.Request.Context(), examID.String(), frame); err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Timer broadcast publish failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "broadcast"})
}

func parseAttemptID(c *gin.Context) (uuid.UUID, bool) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return attemptID, true
}

func proctorActor(c *gin.Context) string {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return ""
	}
	return "proctor:" + strconv.Itoa(claims.UserID)
}
