package roomhub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meethub/backend/internal/config"
	"meethub/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// WebSocketClient implements registry.Client on a gorilla websocket.
type WebSocketClient struct {
	Conn   *websocket.Conn
	Hub    *ManagerService
	Handle string

	send      chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	reason    string
}

func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		Conn: conn,
		Hub:  hub,
		send: make(chan models.Envelope, config.SendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues env without blocking.
func (c *WebSocketClient) Send(env models.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Close makes the write pump send a close frame carrying reason and stop.
func (c *WebSocketClient) Close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Run starts the read and write pumps. Handle must be set first.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c.Handle)
		c.Close("")
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("module", "roomhub").Str("handle", c.Handle).Msg("unexpected websocket close")
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		c.Hub.HandleMessage(ctx, c.Handle, message)
		cancel()
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(env)
			if err != nil {
				log.Error().Err(err).Str("module", "roomhub").Str("event", env.Event).Msg("failed to encode envelope")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.done:
			c.mu.Lock()
			reason := c.reason
			c.mu.Unlock()
			code := websocket.CloseNormalClosure
			if reason != "" {
				code = websocket.ClosePolicyViolation
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
