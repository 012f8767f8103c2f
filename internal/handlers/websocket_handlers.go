package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/config"
	ws "github.com/ingafriyiestephen/ead-chat-socket/internal/websocket"
	"github.com/ingafriyiestephen/ead-chat-socket/pkg/logger"
)

type WebSocketHandlers struct {
	hub      *ws.Hub
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub, cfg *config.Config) *WebSocketHandlers {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(origin)] = true
	}

	return &WebSocketHandlers{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				if allowed[strings.ToLower(origin)] {
					return true
				}
				logger.Debug("Blocked WebSocket connection from disallowed origin %q", origin)
				return false
			},
		},
	}
}

// HandleWebSocket upgrades the connection and registers the client with the
// hub. Identity is optional: connections without a userId are anonymous.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, userType := h.identity(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, userID, userType)

	// Register client with hub
	h.hub.Register <- client

	// Start client pumps
	go client.WritePump()
	go client.ReadPump()
}

// identity resolves the user identity for a handshake. A JWT in the token
// query parameter wins when a secret is configured; otherwise identity comes
// from plain userId/userType query parameters.
func (h *WebSocketHandlers) identity(r *http.Request) (string, string) {
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" && len(h.cfg.JWT.Secret) > 0 {
		userID, userType, err := h.claimsFromToken(tokenStr)
		if err == nil {
			return userID, userType
		}
		logger.Error("Invalid handshake token, falling back to query identity: %v", err)
	}

	return r.URL.Query().Get("userId"), r.URL.Query().Get("userType")
}

func (h *WebSocketHandlers) claimsFromToken(tokenStr string) (string, string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.cfg.JWT.Secret, nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	var userID string
	switch id := (*claims)["user_id"].(type) {
	case string:
		userID = id
	case float64:
		userID = strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return "", "", fmt.Errorf("invalid user ID in token")
	}

	userType, _ := (*claims)["user_type"].(string)
	return userID, userType, nil
}
