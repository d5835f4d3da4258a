package response

// ErrCode is a typed error code enum for consistent API error identification.
// Codes are stable: clients and the proctor dashboard match on them.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrStudentOnly      ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorOnly      ErrCode = "PROCTOR_ACCESS_ONLY"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt integrity ─────────────────────────────────────────────
	ErrAttemptNotFound       ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotActive      ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAttemptExists         ErrCode = "ATTEMPT_ALREADY_EXISTS"
	ErrTimeExpired           ErrCode = "TIME_EXPIRED"
	ErrInvalidQuestionAccess ErrCode = "INVALID_QUESTION_ACCESS"
	ErrReplayAttempt         ErrCode = "REPLAY_ATTEMPT"
	ErrAnswerTooFast         ErrCode = "ANSWER_TOO_FAST"
	ErrAnswerTooSlow         ErrCode = "ANSWER_TOO_SLOW"
	ErrDeviceSwitch          ErrCode = "DEVICE_SWITCH_DETECTED"
	ErrDeviceMismatch        ErrCode = "DEVICE_MISMATCH"
	ErrAttemptTerminated     ErrCode = "ATTEMPT_TERMINATED"
	ErrAttemptPaused         ErrCode = "ATTEMPT_PAUSED"
	ErrAttemptNotRestartable ErrCode = "ATTEMPT_NOT_RESTARTABLE"

	// ─── Exam ──────────────────────────────────────────────────────────
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
// Policy rejections are specific; infra failures stay generic so internals
// never leak to clients.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentOnly:
		return "This resource is restricted to students."
	case ErrProctorOnly:
		return "This resource is restricted to proctors."
	case ErrPermissionDenied:
		return "Permission denied."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt integrity ─────────────────────────────────────────────
	case ErrAttemptNotFound:
		return "No attempt found for this exam."
	case ErrAttemptNotActive:
		return "The attempt is not active."
	case ErrAttemptExists:
		return "An attempt for this exam already exists and cannot be restarted."
	case ErrTimeExpired:
		return "The exam time has expired."
	case ErrInvalidQuestionAccess:
		return "Questions must be accessed in order."
	case ErrReplayAttempt:
		return "This answer token was already used or never issued."
	case ErrAnswerTooFast:
		return "The answer was submitted too quickly."
	case ErrAnswerTooSlow:
		return "The answer window for this question has closed."
	case ErrDeviceSwitch:
		return "A device change was detected. The attempt has been locked."
	case ErrDeviceMismatch:
		return "This attempt is bound to a different device."
	case ErrAttemptTerminated:
		return "The attempt has been terminated due to integrity violations."
	case ErrAttemptPaused:
		return "The attempt is paused by a proctor."
	case ErrAttemptNotRestartable:
		return "This attempt is not eligible for a restart."

	// ─── Exam ──────────────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	case ErrUnavailable:
		return "The service is temporarily unavailable. Please try again."
	default:
		return "An unexpected error occurred."
	}
}
