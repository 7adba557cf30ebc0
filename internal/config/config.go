package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL         string
	SocketURL          string
	RequestTimeout     time.Duration
	ReconnectAttempts  int
	ReconnectDelay     time.Duration
	StorageDir         string
	MutationDebounce   time.Duration
}

func Load() Config {
	base := strings.TrimRight(getenv("API_BASE_URL", "http://127.0.0.1:8080/api"), "/")
	socket := strings.TrimSpace(os.Getenv("SOCKET_URL"))
	if socket == "" {
		// Same host as the API unless overridden.
		socket = "ws" + strings.TrimPrefix(strings.TrimSuffix(base, "/api"), "http") + "/ws"
	}

	return Config{
		APIBaseURL:         base,
		SocketURL:          socket,
		RequestTimeout:     time.Duration(getenvInt("REQUEST_TIMEOUT_SECONDS", 15, 1, 120)) * time.Second,
		ReconnectAttempts:  getenvInt("SOCKET_RECONNECT_ATTEMPTS", 4, 1, 10),
		ReconnectDelay:     time.Duration(getenvInt("SOCKET_RECONNECT_DELAY_MS", 1000, 100, 30000)) * time.Millisecond,
		StorageDir:         getenv("STORAGE_DIR", defaultStorageDir()),
		MutationDebounce:   time.Duration(getenvInt("MUTATION_DEBOUNCE_MS", 250, 0, 5000)) * time.Millisecond,
	}
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "mesaclient")
}

func getenv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getenvInt(key string, fallback int, min int, max int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if min > 0 && v < min {
		return fallback
	}
	if max > 0 && v > max {
		return fallback
	}
	return v
}
