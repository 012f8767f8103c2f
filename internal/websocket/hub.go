package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/models"
	"github.com/ingafriyiestephen/ead-chat-socket/pkg/logger"
)

// PresenceEvents is what the hub needs from the presence state machine.
type PresenceEvents interface {
	Activity(userID string)
	Disconnect(userID string)
}

// clientFrame pairs an inbound frame with the connection it arrived on.
type clientFrame struct {
	client *Client
	frame  *models.Frame
}

// Hub is the connection registry and conversation router. All lifecycle and
// inbound events are serialized through the Run loop; broadcasts may also
// originate from presence timers, so the client set is guarded by a mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   *roomSet

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *clientFrame

	presence PresenceEvents
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      newRoomSet(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *clientFrame),
		done:       make(chan struct{}),
	}
}

// AttachPresence wires the presence state machine. Must be called before Run.
func (h *Hub) AttachPresence(p PresenceEvents) {
	h.presence = p
}

// Run is the hub's event loop. Events from a single connection are processed
// in arrival order; events from different connections interleave in the order
// they reach the loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case cf := <-h.Inbound:
			h.dispatch(cf)
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// ClientCount reports how many connections are currently registered.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	client.closed = false
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	logger.Info("Connection %s registered (userId=%q, type=%s). Total connections: %d",
		client.connID, client.userID, client.userType, count)

	if client.userID != "" {
		h.BroadcastAll(models.OutboundFrame{
			Type: models.EventUserOnline,
			Payload: models.UserOnlinePayload{
				UserID:   client.userID,
				UserType: client.userType,
			},
		})
		h.presence.Activity(client.userID)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	count := len(h.clients)
	h.mu.Unlock()

	h.rooms.leaveAll(client)
	close(client.send)

	logger.Info("Connection %s unregistered. Total connections: %d", client.connID, count)

	if client.userID != "" {
		h.presence.Disconnect(client.userID)
	}
}

// dispatch routes one inbound frame. A panicking handler is isolated so it
// cannot take down the loop or unrelated connections.
func (h *Hub) dispatch(cf *clientFrame) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic handling %s frame on connection %s: %v",
				cf.frame.Type, cf.client.connID, r)
		}
	}()

	switch cf.frame.Type {
	case models.EventJoinConversation:
		h.handleJoin(cf.client, cf.frame.Payload)
	case models.EventChatMessage:
		h.handleChatMessage(cf.client, cf.frame.Payload)
	case models.EventStartTyping:
		h.handleTyping(cf.client, cf.frame.Payload, true)
	case models.EventStopTyping:
		h.handleTyping(cf.client, cf.frame.Payload, false)
	case models.EventMarkAsRead:
		h.handleMarkAsRead(cf.client, cf.frame.Payload)
	case models.EventDeleteMessage:
		h.handleDeleteMessage(cf.client, cf.frame.Payload)
	default:
		logger.Debug("Unknown frame type %q from connection %s", cf.frame.Type, cf.client.connID)
	}
}

func (h *Hub) handleJoin(client *Client, raw json.RawMessage) {
	conversationID := conversationIDValue(raw)
	if conversationID == "" {
		return
	}

	h.rooms.join(client, conversationID)
	logger.Info("Connection %s (userId=%q) joined conversation %s", client.connID, client.userID, conversationID)
	h.presence.Activity(client.userID)
}

func (h *Hub) handleChatMessage(client *Client, raw json.RawMessage) {
	var payload models.ChatMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.Error("Error decoding chat message from connection %s: %v", client.connID, err)
		h.sendError(client, "Failed to broadcast message")
		return
	}

	conversationID := models.IDString(payload.ConversationID)
	if conversationID == "" {
		return
	}

	msg, err := models.NewChatMessage(&payload, client.userID, client.userType, time.Now())
	if err != nil {
		logger.Error("Error broadcasting message from connection %s: %v", client.connID, err)
		h.sendError(client, "Failed to broadcast message")
		return
	}

	// Room-wide fan-out, sender included.
	h.broadcastRoom(conversationID, models.OutboundFrame{Type: models.EventNewMessage, Payload: msg}, nil)
}

func (h *Hub) handleTyping(client *Client, raw json.RawMessage, start bool) {
	conversationID := conversationIDValue(raw)
	if conversationID == "" || client.userID == "" {
		return
	}

	if start {
		h.presence.Activity(client.userID)
	}

	eventType := models.EventUserStopTyping
	if start {
		eventType = models.EventUserTyping
	}

	h.broadcastRoom(conversationID, models.OutboundFrame{
		Type: eventType,
		Payload: models.TypingPayload{
			ConversationID: conversationID,
			UserID:         client.userID,
			UserType:       client.userType,
		},
	}, client)
}

func (h *Hub) handleMarkAsRead(client *Client, raw json.RawMessage) {
	var payload models.MarkAsReadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	conversationID := models.IDString(payload.ConversationID)
	readerID := models.IDString(payload.ReaderID)
	if conversationID == "" || readerID == "" {
		return
	}

	messageID := models.IDString(payload.MessageID)
	logger.Info("Message %s marked as read by user %s", messageID, readerID)

	h.broadcastRoom(conversationID, models.OutboundFrame{
		Type:    models.EventMessageRead,
		Payload: models.MessageReadPayload{MessageID: messageID, UserID: readerID},
	}, nil)
	h.presence.Activity(readerID)
}

func (h *Hub) handleDeleteMessage(client *Client, raw json.RawMessage) {
	var payload models.DeleteMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	conversationID := models.IDString(payload.ConversationID)
	if conversationID == "" {
		return
	}

	h.broadcastRoom(conversationID, models.OutboundFrame{
		Type: models.EventMessageDeleted,
		Payload: models.MessageDeletedPayload{
			MessageID: models.IDString(payload.MessageID),
			DeletedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil)
}

// BroadcastAll delivers a frame to every registered connection.
func (h *Hub) BroadcastAll(frame models.OutboundFrame) {
	data := marshalFrame(frame)
	if data == nil {
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.safeSend(client, data)
	}
}

// broadcastRoom delivers a frame to every member of a conversation room,
// optionally excluding one connection. Delivery order across members is
// unspecified.
func (h *Hub) broadcastRoom(conversationID string, frame models.OutboundFrame, exclude *Client) {
	data := marshalFrame(frame)
	if data == nil {
		return
	}

	for _, client := range h.rooms.members(conversationID) {
		if client == exclude {
			continue
		}
		h.safeSend(client, data)
	}
}

func (h *Hub) sendError(client *Client, reason string) {
	data := marshalFrame(models.OutboundFrame{
		Type:    models.EventMessageError,
		Payload: models.MessageErrorPayload{Reason: reason},
	})
	if data != nil {
		h.safeSend(client, data)
	}
}

// safeSend queues a frame for one connection. A slow consumer's frame is
// dropped rather than blocking the caller; a genuinely dead connection is
// torn down by its own write deadline.
func (h *Hub) safeSend(client *Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic sending to connection %s: %v", client.connID, r)
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] || client.closed {
		return
	}

	select {
	case client.send <- data:
	default:
		logger.Debug("Dropping frame for connection %s: send buffer full", client.connID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.conn.Close()
	}

	logger.Info("Hub stopped, closed %d connections", len(clients))
}

func marshalFrame(frame models.OutboundFrame) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Error("Error marshaling %s frame: %v", frame.Type, err)
		return nil
	}
	return data
}

// conversationIDValue extracts a conversation id from a payload that may be a
// bare scalar or an object with a conversationId field.
func conversationIDValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	if obj, ok := v.(map[string]interface{}); ok {
		return models.IDString(obj["conversationId"])
	}
	return models.IDString(v)
}
