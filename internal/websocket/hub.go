package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/provex/proctor-backend/internal/config"
)

// Client wraps a connection with a write lock so the handler's read loop
// and the hub broadcaster can both send frames safely.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	// OnTimer, when set, handles broadcast timer frames instead of a raw
	// Send. The handler uses it to recompute the client's own attempt
	// clock: a broadcast frame is a resync trigger, not the clock itself.
	OnTimer func(TimerResponse)
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send writes a typed payload to the connection.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteTyped(c.conn, v)
}

// Hub tracks connected exam clients per exam room and fans out timer
// frames published on Redis. Publishing goes through Redis so every
// server instance delivers to its own local connections.
type Hub struct {
	rdb *redis.Client
	log zerolog.Logger

	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		rdb:   rdb,
		log:   log.With().Str("component", "ws_hub").Logger(),
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Join registers a client in the exam's room.
func (h *Hub) Join(examID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[examID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[examID] = room
	}
	room[c] = struct{}{}
}

// Leave removes a client from the exam's room, dropping the room when it
// empties.
func (h *Hub) Leave(examID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[examID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, examID)
	}
}

// PublishTimer broadcasts an authoritative timer frame to every client of
// the exam, across all server instances.
func (h *Hub) PublishTimer(ctx context.Context, examID string, frame TimerResponse) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, config.CacheKey.ExamTimerChannel(examID), payload).Err()
}

// Run subscribes to all exam timer channels and forwards frames to the
// local rooms. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pattern := config.CacheKey.ExamTimerChannel("*")
	pubsub := h.rdb.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	h.log.Info().Str("pattern", pattern).Msg("Timer broadcast hub started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Timer broadcast hub stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliver(examIDFromChannel(msg.Channel), []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliver(examID string, payload []byte) {
	if examID == "" {
		return
	}

	var frame TimerResponse
	if err := json.Unmarshal(payload, &frame); err != nil {
		h.log.Warn().Err(err).Msg("Malformed timer frame dropped")
		return
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[examID]))
	for c := range h.rooms[examID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if c.OnTimer != nil {
			c.OnTimer(frame)
			continue
		}
		if err := c.Send(frame); err != nil {
			h.log.Debug().Err(err).Str("exam_id", examID).Msg("Timer frame write failed")
		}
	}
}

// examIDFromChannel extracts the exam ID back out of a pub/sub channel
// name produced by CacheKey.ExamTimerChannel.
func examIDFromChannel(channel string) string {
	trimmed := strings.TrimPrefix(channel, "exam:")
	if trimmed == channel {
		return ""
	}
	id := strings.TrimSuffix(trimmed, ":timer")
	if id == trimmed {
		return ""
	}
	return id
}
