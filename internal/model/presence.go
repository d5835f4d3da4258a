package model

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus mirrors the connection state of one client socket.
type PresenceStatus string

const (
	PresenceConnected    PresenceStatus = "CONNECTED"
	PresenceDisconnected PresenceStatus = "DISCONNECTED"
)

// PresenceEntry is the ephemeral, process-local record of a live client
// connection. It is not the source of truth: a periodic flush promotes it
// to durable storage, and a lost entry is rebuilt by the next heartbeat.
type PresenceEntry struct {
	AttemptID    uuid.UUID      `json:"attempt_id"`
	ConnectionID string         `json:"connection_id"`
	UserID       int            `json:"user_id"`
	ExamID       uuid.UUID      `json:"exam_id"`
	LastSeenAt   time.Time      `json:"last_seen_at"`
	Status       PresenceStatus `json:"status"`
	Dirty        bool           `json:"-"`
}
