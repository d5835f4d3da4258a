package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates exam publication states.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusClosed    ExamStatus = "CLOSED"
)

// Exam is the reference data the integrity engine needs about an exam:
// identity, availability, and the server-authoritative duration.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Status          ExamStatus `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	QuestionCount   int        `json:"question_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Duration returns the exam duration as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}
