package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Presence PresenceConfig
	StatusAPI StatusAPIConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type PresenceConfig struct {
	IdleTimeout time.Duration
}

type StatusAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type JWTConfig struct {
	// Secret is optional: when empty, handshake identity comes from plain
	// query parameters only.
	Secret []byte
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnvOrDefault("PORT", ":3001"),
			AllowedOrigins: parseOrigins(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
			ReadTimeout:    getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:   getDurationOrDefault("WRITE_TIMEOUT", "15s"),
		},
		Presence: PresenceConfig{
			IdleTimeout: getDurationOrDefault("IDLE_TIMEOUT", "5m"),
		},
		StatusAPI: StatusAPIConfig{
			BaseURL: getEnvOrDefault("STATUS_API_BASE_URL", "https://me.eadpayroll.com/api"),
			Timeout: getDurationOrDefault("STATUS_API_TIMEOUT", "10s"),
		},
		JWT: JWTConfig{
			Secret: []byte(os.Getenv("JWT_SECRET")),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
