package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	ws "github.com/ingafriyiestephen/ead-chat-socket/internal/websocket"
)

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Connections int       `json:"connections"`
}

type HealthHandlers struct {
	hub *ws.Hub
}

func NewHealthHandlers(hub *ws.Hub) *HealthHandlers {
	return &HealthHandlers{hub: hub}
}

func (h *HealthHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Connections: h.hub.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
