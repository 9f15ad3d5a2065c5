package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Mode selects the backend answering strategy. Only ModeSearch
// returns citations.
type Mode string

const (
	ModeSearch Mode = "search"
	ModeReason Mode = "reason"
	ModeWrite  Mode = "write"
)

const streamPath = "/api/v1/chat/stream"

var baseHeaders = map[string]string{
	"Content-Type":  "application/json",
	"Accept":        "text/event-stream",
	"Cache-Control": "no-cache",
	"User-Agent":    "mediq-go/0.1",
}

// StreamOptions carries the per-request flags. Citations is only
// meaningful for ModeSearch; other modes skip citation work entirely.
type StreamOptions struct {
	Mode      Mode
	Clinical  bool
	Citations bool
}

type chatRequest struct {
	Query      string `json:"query"`
	IsClinical bool   `json:"isClinical"`
	IsReason   bool   `json:"isReason"`
	IsWrite    bool   `json:"isWrite"`
	Mode       Mode   `json:"mode"`
	Stream     bool   `json:"stream"`
}

func (c *Client) newStreamRequest(ctx context.Context, query string, opts StreamOptions) (*http.Request, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeSearch
	}
	body, err := json.Marshal(chatRequest{
		Query:      query,
		IsClinical: opts.Clinical,
		IsReason:   mode == ModeReason,
		IsWrite:    mode == ModeWrite,
		Mode:       mode,
		Stream:     true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}
