package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionHeartbeat       Action = "heartbeat"
	ActionViolationReport Action = "violation_report"
	ActionTimerSync       Action = "timer_sync"
	ActionPing            Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// HeartbeatRequest is the periodic liveness signal from the exam client.
type HeartbeatRequest struct {
	Action Action `json:"action"`
}

// ViolationReportRequest is sent by the client when its monitoring layer
// observes an integrity event (tab switch, fullscreen exit, etc).
type ViolationReportRequest struct {
	Action  Action `json:"action"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// TimerSyncRequest asks for the server-authoritative remaining time.
type TimerSyncRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventSuccess      Event = "success"
	EventPong         Event = "pong"
	EventTimer        Event = "timer"
	EventViolationAck Event = "violation_ack"
	EventTerminated   Event = "terminated"
)

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// TimerResponse carries the authoritative clock. Clients must discard
// their local countdown and adopt these values.
type TimerResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	EndsAt           string `json:"ends_at"`
}

type ViolationAckResponse struct {
	Event          Event  `json:"event"`
	Type           string `json:"type"`
	ViolationCount int    `json:"violation_count"`
}

// TerminatedResponse is the final frame before the server closes the
// connection on a terminated or expired attempt.
type TerminatedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
