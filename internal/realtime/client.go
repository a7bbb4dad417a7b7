package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // any origin; the session id gates access
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StateFunc returns the current view of a session, or an error when it does not exist.
type StateFunc func(ctx context.Context, sessionID uuid.UUID) (interface{}, error)

// Client represents a single WebSocket connection watching one session.
type Client struct {
	ID        string
	SessionID uuid.UUID
	JoinedAt  time.Time
	hub       *Hub
	state     StateFunc
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// ServeWs handles GET /ws?session_id=... : upgrade, push the current state, then relay session events.
func ServeWs(hub *Hub, state StateFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		if sessionIDStr == "" {
			response.BadRequest(c, "session_id required")
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			response.BadRequest(c, "invalid session_id")
			return
		}
		initial, err := state(c.Request.Context(), sessionID)
		if err != nil {
			response.NotFound(c, "session not found")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			JoinedAt:  time.Now(),
			hub:       hub,
			state:     state,
			conn:      conn,
			send:      make(chan WSMessage, 64),
			logger:    logger,
		}
		hub.Register(client)
		hub.SendToClient(sessionID, client.ID, EventState, initial)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.logger.Debug("websocket closed", zap.String("client_id", c.ID), zap.Duration("connected", time.Since(c.JoinedAt)))
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "sync":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			st, err := c.state(ctx, c.SessionID)
			cancel()
			if err != nil {
				c.hub.SendToClient(c.SessionID, c.ID, "error", map[string]string{"error": "session not found"})
				continue
			}
			c.hub.SendToClient(c.SessionID, c.ID, EventState, st)
		default:
			// clients mutate sessions over REST; anything else is ignored
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
