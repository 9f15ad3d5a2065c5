package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
)

var warnOnce sync.Once

// ReplayToken returns the bearer token the replay server accepts.
// A missing value falls back to an insecure default so local
// development works out of the box, with a one-time warning.
func ReplayToken() string {
	if v := strings.TrimSpace(os.Getenv("MEDIQ_REPLAY_TOKEN")); v != "" {
		return v
	}
	warnOnce.Do(func() {
		slog.Warn("MEDIQ_REPLAY_TOKEN is not set, using insecure default \"dev\"")
	})
	return "dev"
}

// BearerFromRequest extracts the bearer credential from an incoming
// request's Authorization header.
func BearerFromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", errors.New("authentication required")
	}
	token := strings.TrimSpace(header[7:])
	if token == "" {
		return "", errors.New("authentication required")
	}
	return token, nil
}

// VerifyRequest checks an incoming request against the expected
// bearer token.
func VerifyRequest(r *http.Request, expected string) error {
	token, err := BearerFromRequest(r)
	if err != nil {
		return err
	}
	if token != expected {
		return errors.New("invalid credentials")
	}
	return nil
}
