package models

import "encoding/json"

// EventType identifies a frame on the wire.
type EventType string

// Inbound events (client -> hub).
const (
	EventJoinConversation EventType = "join-conversation"
	EventChatMessage      EventType = "chat-message"
	EventStartTyping      EventType = "start-typing"
	EventStopTyping       EventType = "stop-typing"
	EventMarkAsRead       EventType = "mark-as-read"
	EventDeleteMessage    EventType = "message-deleted"
)

// Outbound events (hub -> clients).
const (
	EventUserOnline     EventType = "user-online"
	EventUserOffline    EventType = "user-offline"
	EventUserActive     EventType = "user-active"
	EventUserIdle       EventType = "user-idle"
	EventNewMessage     EventType = "new-message"
	EventUserTyping     EventType = "user-typing"
	EventUserStopTyping EventType = "user-stop-typing"
	EventMessageRead    EventType = "message-read"
	EventMessageDeleted EventType = "message-deleted"
	EventMessageError   EventType = "message-error"
)

// Frame is the standard envelope exchanged over the WebSocket.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundFrame pairs an event type with an already-built payload value.
type OutboundFrame struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// UserOnlinePayload is broadcast to every connection when an identified
// user connects.
type UserOnlinePayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

// UserOfflinePayload is broadcast when an identified user disconnects.
type UserOfflinePayload struct {
	UserID   string `json:"userId"`
	LastSeen string `json:"lastSeen"`
}

// UserActivityPayload is broadcast on activity and idle transitions.
type UserActivityPayload struct {
	UserID string `json:"userId"`
}

// TypingPayload is fanned out for user-typing and user-stop-typing.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserType       string `json:"userType"`
}

// MessageReadPayload is fanned out for message-read.
type MessageReadPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// MessageDeletedPayload is fanned out for message-deleted.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	DeletedAt string `json:"deletedAt"`
}

// MessageErrorPayload is sent to the originating connection only.
type MessageErrorPayload struct {
	Reason string `json:"reason"`
}

// MarkAsReadPayload is the inbound mark-as-read payload. Identifier fields
// are untyped because the external application sends them as either strings
// or numbers.
type MarkAsReadPayload struct {
	MessageID      interface{} `json:"messageId"`
	ConversationID interface{} `json:"conversationId"`
	ReaderID       interface{} `json:"readerId"`
}

// DeleteMessagePayload is the inbound message-deleted payload.
type DeleteMessagePayload struct {
	ConversationID interface{} `json:"conversationId"`
	MessageID      interface{} `json:"messageId"`
}
