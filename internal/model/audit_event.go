package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies what happened to an attempt.
type AuditEventType string

const (
	AuditAttemptStarted    AuditEventType = "ATTEMPT_STARTED"
	AuditAttemptRestarted  AuditEventType = "ATTEMPT_RESTARTED"
	AuditAttemptResumed    AuditEventType = "ATTEMPT_RESUMED"
	AuditDeviceBound       AuditEventType = "DEVICE_BOUND"
	AuditDeviceRebound     AuditEventType = "DEVICE_REBOUND"
	AuditDeviceSwitch      AuditEventType = "DEVICE_SWITCH"
	AuditNonceIssued       AuditEventType = "NONCE_ISSUED"
	AuditAnswerAccepted    AuditEventType = "ANSWER_ACCEPTED"
	AuditQuestionSkipped   AuditEventType = "QUESTION_SKIPPED"
	AuditViolationRecorded AuditEventType = "VIOLATION_RECORDED"
	AuditAttemptExpired    AuditEventType = "ATTEMPT_EXPIRED"
	AuditAttemptTerminated AuditEventType = "ATTEMPT_TERMINATED"
	AuditAttemptSubmitted  AuditEventType = "ATTEMPT_SUBMITTED"
	AuditTrustScored       AuditEventType = "TRUST_SCORED"
	AuditVerificationRun   AuditEventType = "VERIFICATION_RUN"
	AuditAttemptPaused     AuditEventType = "ATTEMPT_PAUSED"
	AuditAttemptUnpaused   AuditEventType = "ATTEMPT_UNPAUSED"
	AuditAttemptInvalid    AuditEventType = "ATTEMPT_INVALIDATED"
	AuditForceSubmitted    AuditEventType = "ATTEMPT_FORCE_SUBMITTED"
)

// AuditEvent is an immutable trail entry. Recording is best-effort:
// a failed audit write never aborts the transition that produced it.
type AuditEvent struct {
	ID         uuid.UUID      `json:"id"`
	AttemptID  uuid.UUID      `json:"attempt_id"`
	ExamID     uuid.UUID      `json:"exam_id"`
	UserID     int            `json:"user_id"`
	Type       AuditEventType `json:"type"`
	Actor      string         `json:"actor,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}
