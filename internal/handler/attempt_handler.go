package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/provex/proctor-backend/internal/fingerprint"
	"github.com/provex/proctor-backend/internal/middleware"
	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/response"
	"github.com/provex/proctor-backend/internal/service"
	"github.com/provex/proctor-backend/internal/validator"
)

// AttemptHandler exposes the student-facing attempt lifecycle.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// startRequest carries the client's device fingerprint attributes.
type startRequest struct {
	Device map[string]string `json:"device" binding:"required"`
}

type accessQuestionRequest struct {
	QuestionID string            `json:"question_id" binding:"required,uuid"`
	Index      int               `json:"index" binding:"min=0"`
	Device     map[string]string `json:"device"`
}

type submitAnswerRequest struct {
	QuestionID string            `json:"question_id" binding:"required,uuid"`
	Index      int               `json:"index" binding:"min=0"`
	Nonce      string            `json:"nonce" binding:"required"`
	Answer     string            `json:"answer"`
	Device     map[string]string `json:"device"`
}

type skipQuestionRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Index      int    `json:"index" binding:"min=0"`
}

type violationReportRequest struct {
	Type    string `json:"type" binding:"required"`
	Details string `json:"details"`
}

// StartAttempt godoc
// POST /api/v1/student/exams/:examId/attempt
// Creates the attempt (or restarts an eligible one), binds the device
// fingerprint, and returns the server-authoritative timing window.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req startRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), claims.UserID, examID, fingerprint.Attributes(req.Device))
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"attempt": attemptView(attempt, h.attemptService.RemainingTime(attempt).Seconds()),
	})
}

// ResumeAttempt godoc
// POST /api/v1/student/exams/:examId/attempt/resume
// Re-validates an active attempt for a returning client.
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req startRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Resume(c.Request.Context(), claims.UserID, examID, fingerprint.Attributes(req.Device))
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attemptView(attempt, h.attemptService.RemainingTime(attempt).Seconds()),
	})
}

// GetAttemptState godoc
// GET /api/v1/student/exams/:examId/attempt
// Returns the current attempt state including the authoritative clock.
func (h *AttemptHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attemptView(attempt, h.attemptService.RemainingTime(attempt).Seconds()),
	})
}

// AccessQuestion godoc
// POST /api/v1/student/exams/:examId/attempt/questions/access
// Validates forward-only navigation and issues the single-use answer
// nonce for the question.
func (h *AttemptHandler) AccessQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req accessQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, _ := uuid.Parse(req.QuestionID)

	nonce, err := h.attemptService.AccessQuestion(c.Request.Context(), claims.UserID, examID, questionID, req.Index, fingerprint.Attributes(req.Device))
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"nonce":      nonce.Nonce,
		"expires_at": nonce.ExpiresAt,
	})
}

// SubmitAnswer godoc
// POST /api/v1/student/exams/:examId/attempt/answers
// Accepts an answer gated by the question's nonce and the submission
// time window.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, _ := uuid.Parse(req.QuestionID)

	err := h.attemptService.SubmitAnswer(c.Request.Context(), claims.UserID, examID, questionID, req.Index, req.Nonce, fingerprint.Attributes(req.Device))
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "accepted"})
}

// SkipQuestion godoc
// POST /api/v1/student/exams/:examId/attempt/skips
// Records a skip and advances the cursor.
func (h *AttemptHandler) SkipQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req skipQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, _ := uuid.Parse(req.QuestionID)

	if err := h.attemptService.SkipQuestion(c.Request.Context(), claims.UserID, examID, questionID, req.Index); err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "skipped"})
}

// ReportViolation godoc
// POST /api/v1/student/exams/:examId/attempt/violations
// Ingests a client proctoring report.
func (h *AttemptHandler) ReportViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req violationReportRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.ReportViolation(c.Request.Context(), claims.UserID, examID, model.ViolationType(req.Type), req.Details)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"violation_count": len(attempt.Violations),
		"status":          attempt.Status,
	})
}

// SubmitAttempt godoc
// POST /api/v1/student/exams/:examId/attempt/submit
// Finalizes the attempt: runs verification and trust scoring exactly
// once and freezes the terminal status.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": gin.H{
			"id":                   attempt.ID,
			"status":               attempt.Status,
			"trust_score":          attempt.TrustScore,
			"trust_classification": attempt.TrustClass,
			"verification_status":  attempt.VerificationStatus,
			"verification_results": attempt.VerificationResults,
			"scoring_breakdown":    attempt.ScoringBreakdown,
			"submitted_at":         attempt.SubmittedAt,
		},
	})
}

// attemptView is the state payload shared by start/resume/state.
func attemptView(a *model.Attempt, remainingSeconds float64) gin.H {
	return gin.H{
		"id":                     a.ID,
		"exam_id":                a.ExamID,
		"status":                 a.Status,
		"started_at":             a.StartedAt,
		"ends_at":                a.EndsAt,
		"remaining_seconds":      int64(remainingSeconds),
		"current_question_index": a.CurrentQuestionIndex,
		"answered_questions":     a.AnsweredQuestions,
		"skipped_questions":      a.SkippedQuestions,
		"violation_count":        len(a.Violations),
	}
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("examId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}

// failAttemptError maps service and aggregate errors to stable API codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrAttemptExists):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExists)
	case errors.Is(err, service.ErrTimeExpired):
		response.Fail(c, http.StatusConflict, response.ErrTimeExpired)
	case errors.Is(err, service.ErrAttemptPaused):
		response.Fail(c, http.StatusConflict, response.ErrAttemptPaused)
	case errors.Is(err, service.ErrAttemptTerminated):
		response.Fail(c, http.StatusConflict, response.ErrAttemptTerminated)
	case errors.Is(err, service.ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrDeviceMismatch):
		response.Fail(c, http.StatusForbidden, response.ErrDeviceMismatch)
	case errors.Is(err, service.ErrDeviceSwitch):
		response.Fail(c, http.StatusForbidden, response.ErrDeviceSwitch)
	case errors.Is(err, service.ErrAnswerTooFast):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrAnswerTooFast)
	case errors.Is(err, service.ErrAnswerTooSlow):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrAnswerTooSlow)
	case errors.Is(err, model.ErrBackwardNavigation), errors.Is(err, model.ErrSkipAhead):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidQuestionAccess)
	case errors.Is(err, model.ErrNoNonceIssued),
		errors.Is(err, model.ErrNonceUsed),
		errors.Is(err, model.ErrNonceExpired),
		errors.Is(err, model.ErrNonceMismatch):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrReplayAttempt)
	case errors.Is(err, model.ErrNotRestartable):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotRestartable)
	case errors.Is(err, model.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
