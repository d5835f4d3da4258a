package model

import "time"

// ViolationType identifies a class of integrity violation. Types arrive
// either from server-side guards (replay, rate limit, device switch) or as
// client proctoring telemetry (camera, screen share, tab focus).
type ViolationType string

const (
	// Server-detected.
	ViolationReplayAttempt     ViolationType = "REPLAY_ATTEMPT"
	ViolationNonceExpired      ViolationType = "NONCE_EXPIRED"
	ViolationNoNonce           ViolationType = "NO_NONCE"
	ViolationAnswerTooFast     ViolationType = "ANSWER_TOO_FAST"
	ViolationAnswerTooSlow     ViolationType = "ANSWER_TOO_SLOW"
	ViolationRateLimitExceeded ViolationType = "RATE_LIMIT_EXCEEDED"
	ViolationHeartbeatGap      ViolationType = "HEARTBEAT_GAP"
	ViolationDeviceSwitch      ViolationType = "DEVICE_SWITCH_DETECTED"
	ViolationVMDetected        ViolationType = "VM_DETECTED"

	// Client-reported proctoring telemetry.
	ViolationCameraDisabled    ViolationType = "CAMERA_DISABLED"
	ViolationScreenShareStop   ViolationType = "SCREEN_SHARE_STOPPED"
	ViolationDisplaySurface    ViolationType = "DISPLAY_SURFACE_SWITCHED"
	ViolationTabSwitch         ViolationType = "TAB_SWITCH"
	ViolationWindowBlur        ViolationType = "WINDOW_BLUR"
	ViolationFullscreenExit    ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyPaste         ViolationType = "COPY_PASTE"
	ViolationDevtoolsOpen      ViolationType = "DEVTOOLS_OPEN"
	ViolationMultipleFaces     ViolationType = "MULTIPLE_FACES"
	ViolationNoFaceDetected    ViolationType = "NO_FACE_DETECTED"
	ViolationProhibitedProcess ViolationType = "PROHIBITED_PROCESS"
)

// DefaultViolationWeight applies to any type missing from ViolationWeights.
const DefaultViolationWeight = 5

// ViolationWeights maps each violation type to its trust-score penalty.
// VM_DETECTED is the instant-fail type: it zeroes the score on its own.
var ViolationWeights = map[ViolationType]int{
	ViolationReplayAttempt:     15,
	ViolationNonceExpired:      5,
	ViolationNoNonce:           10,
	ViolationAnswerTooFast:     10,
	ViolationAnswerTooSlow:     5,
	ViolationRateLimitExceeded: 5,
	ViolationHeartbeatGap:      5,
	ViolationDeviceSwitch:      40,
	ViolationVMDetected:        100,

	ViolationCameraDisabled:    15,
	ViolationScreenShareStop:   15,
	ViolationDisplaySurface:    10,
	ViolationTabSwitch:         5,
	ViolationWindowBlur:        3,
	ViolationFullscreenExit:    5,
	ViolationCopyPaste:         10,
	ViolationDevtoolsOpen:      20,
	ViolationMultipleFaces:     20,
	ViolationNoFaceDetected:    10,
	ViolationProhibitedProcess: 25,
}

// highSeverityViolations terminate the attempt immediately, regardless of
// how many violations were recorded before. VM detection is not in the
// set: the heuristic is non-blocking and instead zeroes the trust score
// at submission.
var highSeverityViolations = map[ViolationType]bool{
	ViolationProhibitedProcess: true,
}

// proctoringViolations are the camera/screen/display-surface breach
// categories that the trust scorer penalizes without a cap.
var proctoringViolations = map[ViolationType]bool{
	ViolationCameraDisabled:  true,
	ViolationScreenShareStop: true,
	ViolationDisplaySurface:  true,
	ViolationMultipleFaces:   true,
	ViolationNoFaceDetected:  true,
}

// Weight returns the penalty for a violation type. Unknown types resolve
// to DefaultViolationWeight, never panic.
func (t ViolationType) Weight() int {
	if w, ok := ViolationWeights[t]; ok {
		return w
	}
	return DefaultViolationWeight
}

// HighSeverity reports whether this type terminates the attempt on sight.
func (t ViolationType) HighSeverity() bool {
	return highSeverityViolations[t]
}

// Proctoring reports whether this type belongs to the proctoring breach
// category (camera/screen/display surface).
func (t ViolationType) Proctoring() bool {
	return proctoringViolations[t]
}

// Violation is one entry in an attempt's append-only violation log.
type Violation struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Details   string        `json:"details,omitempty"`
}
