// Package replay serves scripted event streams for local development
// and integration tests, mimicking the backend's streaming endpoint.
package replay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mediq/internal/auth"
	"mediq/internal/config"
	"mediq/internal/util"
)

// Server replays scripted scenarios behind a bearer check.
type Server struct {
	Script *Script
	Token  string
}

// Router builds the HTTP surface: health endpoints plus the
// authenticated streaming endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/healthz", s.health)
	r.HandleFunc("/readyz", s.health)
	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAuth)
		pr.Post("/api/v1/chat/stream", s.handleStream)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.VerifyRequest(r, s.Token); err != nil {
			util.WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": err.Error()}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "invalid request body"}})
		return
	}
	sc := s.Script.Lookup(req.Query)
	config.Logger.Debug("replaying scenario", "name", sc.Name, "query", req.Query)

	if sc.Status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(sc.Status)
		_, _ = w.Write([]byte(sc.Body))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	delay := time.Duration(sc.DelayMS) * time.Millisecond
	for _, frame := range sc.Frames {
		select {
		case <-r.Context().Done():
			return
		default:
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}
