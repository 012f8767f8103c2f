package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/models"
	"github.com/ingafriyiestephen/ead-chat-socket/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one live WebSocket connection. The user identity is optional; an
// anonymous connection can still join rooms and receive broadcasts but
// produces no presence side effects.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	connID   string
	userID   string
	userType string
	closed   bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, userType string) *Client {
	if userType == "" {
		userType = "employee"
	}
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		connID:   uuid.NewString(),
		userID:   userID,
		userType: userType,
	}
}

// ConnID returns the opaque connection identity assigned at upgrade.
func (c *Client) ConnID() string {
	return c.connID
}

// UserID returns the associated user identity, or "" for anonymous
// connections.
func (c *Client) UserID() string {
	return c.userID
}

// ReadPump reads frames from the connection and forwards them to the hub for
// dispatch. It runs until the connection drops and then unregisters the
// client.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	// Read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on connection %s: %v", c.connID, err)
			}
			break
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("Dropping malformed frame from connection %s: %v", c.connID, err)
			continue
		}

		c.hub.Inbound <- &clientFrame{client: c, frame: &frame}
	}
}

// WritePump writes queued frames to the connection and keeps it alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on connection %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
