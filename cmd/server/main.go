package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/config"
	"github.com/ingafriyiestephen/ead-chat-socket/internal/handlers"
	"github.com/ingafriyiestephen/ead-chat-socket/internal/notifier"
	"github.com/ingafriyiestephen/ead-chat-socket/internal/presence"
	ws "github.com/ingafriyiestephen/ead-chat-socket/internal/websocket"
	"github.com/ingafriyiestephen/ead-chat-socket/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize WebSocket hub
	hub := ws.NewHub()

	// Initialize presence tracking with the external status notifier
	statusNotifier := notifier.NewHTTPNotifier(cfg.StatusAPI.BaseURL, cfg.StatusAPI.Timeout)
	tracker := presence.NewTracker(cfg.Presence.IdleTimeout, hub, statusNotifier)
	hub.AttachPresence(tracker)

	go hub.Run()

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(hub, cfg)
	healthHandlers := handlers.NewHealthHandlers(hub)

	// Setup routes
	router := mux.NewRouter()
	router.HandleFunc("/ws", wsHandlers.HandleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandlers.HandleHealth).Methods(http.MethodGet)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error: %v", err)
	}

	hub.Stop()
	tracker.Close()
	logger.Info("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
