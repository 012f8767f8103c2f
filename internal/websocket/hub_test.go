package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/presence"
)

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, userID, status string) error { return nil }

type wireFrame struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := NewHub()
	tracker := presence.NewTracker(time.Hour, hub, nopNotifier{})
	hub.AttachPresence(tracker)
	go hub.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("userId"), r.URL.Query().Get("userType"))
		hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	}))

	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		tracker.Close()
	})
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readUntil reads frames until one of the wanted type arrives, skipping
// unrelated presence traffic.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) wireFrame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s frame: %v", eventType, err)
		}
		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		if frame.Type == eventType {
			return frame
		}
	}
}

// expectNone fails if a frame of the given type arrives within the wait
// window. The connection is unusable for reads afterwards, so call it last.
func expectNone(t *testing.T, conn *websocket.Conn, eventType string, wait time.Duration) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wireFrame
		if json.Unmarshal(data, &frame) == nil && frame.Type == eventType {
			t.Fatalf("unexpected %s frame: %s", eventType, data)
		}
	}
}

// joinAndConfirm joins a conversation and round-trips a message so the caller
// knows the join has been processed before the test continues.
func joinAndConfirm(t *testing.T, conn *websocket.Conn, conversationID string) {
	t.Helper()

	send(t, conn, `{"type": "join-conversation", "payload": {"conversationId": "`+conversationID+`"}}`)
	send(t, conn, `{"type": "chat-message", "payload": {"conversationId": "`+conversationID+`", "message": "sync"}}`)
	readUntil(t, conn, "new-message")
}

func TestChatMessageFanOutIncludesSender(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")

	send(t, a, `{"type": "join-conversation", "payload": 42}`)
	send(t, a, `{"type": "chat-message", "payload": {"conversationId": 42, "message": "hello room"}}`)

	frame := readUntil(t, a, "new-message")
	if frame.Payload["message"] != "hello room" {
		t.Errorf("unexpected message body %v", frame.Payload["message"])
	}
	if frame.Payload["conversation_id"] != "42" {
		t.Errorf("unexpected conversation_id %v", frame.Payload["conversation_id"])
	}
	if frame.Payload["message_type"] != "text" {
		t.Errorf("unexpected message_type %v", frame.Payload["message_type"])
	}
}

func TestNonMemberReceivesNothing(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")
	b := dialWS(t, srv, "")

	joinAndConfirm(t, a, "42")
	send(t, a, `{"type": "chat-message", "payload": {"conversationId": "42", "message": "members only"}}`)
	readUntil(t, a, "new-message")

	expectNone(t, b, "new-message", 150*time.Millisecond)
}

func TestTypingExcludesOrigin(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "userId=alice")
	bob := dialWS(t, srv, "userId=bob&userType=admin")

	joinAndConfirm(t, alice, "7")
	joinAndConfirm(t, bob, "7")

	send(t, bob, `{"type": "start-typing", "payload": {"conversationId": "7"}}`)
	frame := readUntil(t, alice, "user-typing")
	if frame.Payload["userId"] != "bob" {
		t.Errorf("expected typing user bob, got %v", frame.Payload["userId"])
	}
	if frame.Payload["userType"] != "admin" {
		t.Errorf("expected userType admin, got %v", frame.Payload["userType"])
	}
	if frame.Payload["conversationId"] != "7" {
		t.Errorf("expected conversationId 7, got %v", frame.Payload["conversationId"])
	}

	send(t, bob, `{"type": "stop-typing", "payload": {"conversationId": "7"}}`)
	readUntil(t, alice, "user-stop-typing")

	expectNone(t, bob, "user-typing", 150*time.Millisecond)
}

func TestMarkAsReadFansOutToAllMembers(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "userId=alice")
	bob := dialWS(t, srv, "userId=bob")

	joinAndConfirm(t, alice, "7")
	joinAndConfirm(t, bob, "7")

	send(t, bob, `{"type": "mark-as-read", "payload": {"messageId": 5, "conversationId": "7", "readerId": "bob"}}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readUntil(t, conn, "message-read")
		if frame.Payload["messageId"] != "5" {
			t.Errorf("expected messageId \"5\", got %v", frame.Payload["messageId"])
		}
		if frame.Payload["userId"] != "bob" {
			t.Errorf("expected reader bob, got %v", frame.Payload["userId"])
		}
	}
}

func TestMessageDeletedFansOutToAllMembers(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "userId=alice")
	bob := dialWS(t, srv, "userId=bob")

	joinAndConfirm(t, alice, "7")
	joinAndConfirm(t, bob, "7")

	send(t, alice, `{"type": "message-deleted", "payload": {"conversationId": "7", "messageId": 99}}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readUntil(t, conn, "message-deleted")
		if frame.Payload["messageId"] != "99" {
			t.Errorf("expected messageId \"99\", got %v", frame.Payload["messageId"])
		}
		deletedAt, _ := frame.Payload["deletedAt"].(string)
		if _, err := time.Parse(time.RFC3339, deletedAt); err != nil {
			t.Errorf("expected RFC 3339 deletedAt, got %v", frame.Payload["deletedAt"])
		}
	}
}

func TestBadChatMessageGetsErrorFrame(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")
	b := dialWS(t, srv, "")

	joinAndConfirm(t, a, "7")
	joinAndConfirm(t, b, "7")

	// Numeric message body cannot be turned into text.
	send(t, a, `{"type": "chat-message", "payload": {"conversationId": "7", "message": 12345}}`)
	frame := readUntil(t, a, "message-error")
	if frame.Payload["reason"] != "Failed to broadcast message" {
		t.Errorf("unexpected error reason %v", frame.Payload["reason"])
	}

	// Only the sender hears about it.
	expectNone(t, b, "message-error", 150*time.Millisecond)
}

func TestChatMessageWithoutConversationIDIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")

	joinAndConfirm(t, a, "7")
	send(t, a, `{"type": "chat-message", "payload": {"message": "nowhere to go"}}`)

	expectNone(t, a, "message-error", 150*time.Millisecond)
}

func TestUserOnlineAndOfflineBroadcasts(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")
	joinAndConfirm(t, a, "sync")

	carol := dialWS(t, srv, "userId=carol")
	frame := readUntil(t, a, "user-online")
	if frame.Payload["userId"] != "carol" {
		t.Errorf("expected carol online, got %v", frame.Payload["userId"])
	}
	if frame.Payload["userType"] != "employee" {
		t.Errorf("expected default userType employee, got %v", frame.Payload["userType"])
	}

	carol.Close()
	frame = readUntil(t, a, "user-offline")
	if frame.Payload["userId"] != "carol" {
		t.Errorf("expected carol offline, got %v", frame.Payload["userId"])
	}
	lastSeen, _ := frame.Payload["lastSeen"].(string)
	if _, err := time.Parse(time.RFC3339, lastSeen); err != nil {
		t.Errorf("expected RFC 3339 lastSeen, got %v", frame.Payload["lastSeen"])
	}
}

func TestUnknownFrameTypeIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	a := dialWS(t, srv, "")

	send(t, a, `{"type": "no-such-event", "payload": {}}`)
	joinAndConfirm(t, a, "42")
}
