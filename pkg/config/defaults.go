// Package config provides centralized default values for the widget engine
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Backend API Configuration
	APIBaseURL        string
	RealtimeURL       string
	APIRequestRetries int
	APIRetryInterval  time.Duration

	// Transport Configuration
	HeartbeatInterval       time.Duration
	ReconnectInterval       time.Duration
	MaxReconnectAttempts    int
	TransportDialTimeout    time.Duration
	TransportWriteTimeout   time.Duration
	PreferFallbackTransport bool

	// Storage Configuration
	StateDirectory string
	VisitorMaxAge  time.Duration

	// Cart Sync Configuration
	StorefrontHost     string
	CartSyncQueueDepth int

	// Sandbox Server Configuration
	SandboxPort         string
	SandboxJWTSecret    string
	SessionTTL          time.Duration
	ServerReadTimeout   time.Duration
	ServerWriteTimeout  time.Duration
	ServerIdleTimeout   time.Duration
	SSEHeartbeatSeconds int
)

func init() {
	loadEnvFile()

	// Backend API
	APIBaseURL = getEnvString("WIDGET_API_BASE_URL", "http://localhost:8080/api/v1")
	RealtimeURL = getEnvString("WIDGET_REALTIME_URL", "ws://localhost:8080/api/v1/realtime")
	APIRequestRetries = getEnvInt("WIDGET_API_REQUEST_RETRIES", 2)
	APIRetryInterval = getEnvDuration("WIDGET_API_RETRY_INTERVAL", 500*time.Millisecond)

	// Transport
	HeartbeatInterval = getEnvDuration("WIDGET_HEARTBEAT_INTERVAL", 25*time.Second)
	ReconnectInterval = getEnvDuration("WIDGET_RECONNECT_INTERVAL", 3*time.Second)
	MaxReconnectAttempts = getEnvInt("WIDGET_MAX_RECONNECT_ATTEMPTS", 10)
	TransportDialTimeout = getEnvDuration("WIDGET_TRANSPORT_DIAL_TIMEOUT", 10*time.Second)
	TransportWriteTimeout = getEnvDuration("WIDGET_TRANSPORT_WRITE_TIMEOUT", 5*time.Second)
	PreferFallbackTransport = getEnvBool("WIDGET_PREFER_FALLBACK_TRANSPORT", false)

	// Storage
	StateDirectory = getEnvString("WIDGET_STATE_DIR", ".widget-state")
	VisitorMaxAge = time.Duration(getEnvInt("WIDGET_VISITOR_MAX_AGE_DAYS", 13*30)) * 24 * time.Hour

	// Cart Sync
	StorefrontHost = getEnvString("WIDGET_STOREFRONT_HOST", "")
	CartSyncQueueDepth = getEnvInt("WIDGET_CART_SYNC_QUEUE_DEPTH", 16)

	// Sandbox Server
	SandboxPort = getEnvString("SANDBOX_PORT", "8080")
	SandboxJWTSecret = getEnvString("SANDBOX_JWT_SECRET", "sandbox-dev-secret")
	SessionTTL = getEnvDuration("SANDBOX_SESSION_TTL", 24*time.Hour)
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	SSEHeartbeatSeconds = getEnvInt("SANDBOX_SSE_HEARTBEAT_SECONDS", 30)
}
