package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Session events pushed to connected clients.
const (
	EventState        = "state"
	EventTick         = "tick"
	EventCompleted    = "completed"
	EventExportStatus = "export_status"
)

// Hub maintains session_id -> set of connections and broadcasts messages.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	// sessionID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to session channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a session room. Starts the Redis subscription for the session on first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.SessionID] == nil {
		h.rooms[c.SessionID] = make(map[string]*Client)
		if h.redisSub != nil {
			sessionID := c.SessionID
			cancel, err := h.redisSub.SubscribeSession(sessionID, func(event string, payload []byte) {
				h.Broadcast(sessionID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("session subscribe failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			} else {
				h.subs[sessionID] = cancel
			}
		}
	}
	h.rooms[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Broadcast sends a message to all local clients watching a session.
func (h *Hub) Broadcast(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[sessionID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every client of the session across instances. With Redis the
// subscriber callback does the broadcast, so local clients are not sent the event twice.
func (h *Hub) Publish(sessionID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(sessionID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishSessionEvent(sessionID, event, data); err != nil {
		h.logger.Warn("publish session event failed", zap.Error(err), zap.String("event", event))
		h.Broadcast(sessionID, event, json.RawMessage(data))
	}
}

// SendToClient sends a message to a single client in a session.
func (h *Hub) SendToClient(sessionID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.rooms[sessionID][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Watchers returns the number of connected clients for a session.
func (h *Hub) Watchers(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
