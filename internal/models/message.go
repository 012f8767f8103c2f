package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ChatMessage is the transient message relayed to a conversation room. The
// hub never persists it; the external application owns durable chat data.
// Field names mirror what that application expects on the wire.
type ChatMessage struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderType     string      `json:"sender_type"`
	Message        string      `json:"message"`
	MessageType    string      `json:"message_type"`
	CreatedAt      string      `json:"created_at"`
	AttachmentURL  string      `json:"attachment_url,omitempty"`
	AttachmentFile string      `json:"attachment_file,omitempty"`
	AttachmentName string      `json:"attachment_name,omitempty"`
	AttachmentSize json.Number `json:"attachment_size,omitempty"`
	AttachmentType string      `json:"attachment_type,omitempty"`
}

// ChatMessagePayload is the inbound chat-message payload. The message body
// may be a plain string or an object carrying a "message" field; identifiers
// may arrive as strings or numbers.
type ChatMessagePayload struct {
	ConversationID interface{}     `json:"conversationId"`
	SenderID       interface{}     `json:"senderId"`
	SenderType     string          `json:"senderType"`
	Message        json.RawMessage `json:"message"`
	MessageType    string          `json:"messageType"`
	AttachmentURL  string          `json:"attachment_url"`
	AttachmentFile string          `json:"attachment_file"`
	AttachmentName string          `json:"attachment_name"`
	AttachmentSize json.Number     `json:"attachment_size"`
	AttachmentType string          `json:"attachment_type"`
}

// IDString normalizes an identifier that may arrive as a JSON string or
// number into its canonical string form. Anything else yields "".
func IDString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// NewChatMessage builds the broadcast message from an inbound payload,
// falling back to the connection's identity for the sender. The message id is
// timestamp-derived and not guaranteed unique across concurrent senders.
func NewChatMessage(payload *ChatMessagePayload, senderID, senderType string, now time.Time) (*ChatMessage, error) {
	body, err := extractMessageBody(payload.Message)
	if err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		ID:             now.UnixMilli(),
		ConversationID: IDString(payload.ConversationID),
		SenderID:       senderID,
		SenderType:     senderType,
		Message:        body,
		MessageType:    payload.MessageType,
		CreatedAt:      now.UTC().Format(time.RFC3339),
		AttachmentURL:  payload.AttachmentURL,
		AttachmentFile: payload.AttachmentFile,
		AttachmentName: payload.AttachmentName,
		AttachmentSize: payload.AttachmentSize,
		AttachmentType: payload.AttachmentType,
	}

	if s := IDString(payload.SenderID); s != "" {
		msg.SenderID = s
	}
	if payload.SenderType != "" {
		msg.SenderType = payload.SenderType
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}

	return msg, nil
}

// extractMessageBody accepts either a plain string or a structured payload
// whose "message" field carries the text.
func extractMessageBody(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return "", fmt.Errorf("unsupported message body: %w", err)
	}
	return structured.Message, nil
}
