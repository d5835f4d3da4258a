package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/provex/proctor-backend/internal/repository"
	"github.com/provex/proctor-backend/internal/response"
)

// ExamHandler exposes the exam catalog students pick attempts from.
type ExamHandler struct {
	exams *repository.ExamRepository
}

func NewExamHandler(exams *repository.ExamRepository) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// ListExams godoc
// GET /api/v1/student/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.exams.ListPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/student/exams/:examId
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.exams.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
