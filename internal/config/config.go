package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Logger is the shared structured logger. Binaries may replace it at
// startup (e.g. to raise the level via MEDIQ_DEBUG).
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

const (
	defaultBaseURL = "https://api.mediq.app"
	defaultTimeout = 120 * time.Second
)

// Config carries everything the stream client needs to reach the
// backend. Values come from the environment; the composing binary
// passes a Config in rather than the client reading globals.
type Config struct {
	// BaseURL is the backend origin, without a trailing slash.
	BaseURL string
	// Token is the bearer credential sent with every request.
	Token string
	// Timeout bounds the whole request including the streaming read.
	// Zero means no client-side timeout.
	Timeout time.Duration
	// ImpersonateTLS enables the browser-fingerprint TLS dialer. The
	// production edge rejects default Go client handshakes.
	ImpersonateTLS bool
}

// FromEnv loads configuration from MEDIQ_* variables, falling back to
// defaults suitable for development.
func FromEnv() Config {
	cfg := Config{
		BaseURL:        defaultBaseURL,
		Timeout:        defaultTimeout,
		ImpersonateTLS: envBool("MEDIQ_TLS_IMPERSONATE"),
	}
	if v := strings.TrimSpace(os.Getenv("MEDIQ_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimSuffix(v, "/")
	}
	cfg.Token = strings.TrimSpace(os.Getenv("MEDIQ_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("MEDIQ_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
