// Package backend issues streaming chat requests and feeds the
// responses through the sse ingestion pipeline. One Client owns at
// most one active stream: starting a new one cancels its predecessor.
package backend

import (
	"context"
	"sync"

	"mediq/internal/backend/transport"
	"mediq/internal/config"
	"mediq/internal/sse"
)

// Client is the stream client. Construct it with the configuration of
// whatever composes the conversation feature; there is no package
// singleton.
type Client struct {
	cfg  config.Config
	http transport.Doer

	mu      sync.Mutex
	current *Stream
}

// Stream is the handle for one in-flight request.
type Stream struct {
	session *sse.Session
	cancel  context.CancelFunc
}

// Cancel aborts the stream. The session moves to Cancelled and its
// outcome callback never fires; the underlying body read is unblocked
// via the request context.
func (s *Stream) Cancel() {
	s.session.Cancel()
	s.cancel()
}

// New builds a Client with the production transport.
func New(cfg config.Config) *Client {
	return NewWithDoer(cfg, transport.New(cfg.Timeout, cfg.ImpersonateTLS))
}

// NewWithDoer builds a Client over an injected transport. Tests use
// this with httptest servers or scripted doers.
func NewWithDoer(cfg config.Config, doer transport.Doer) *Client {
	return &Client{cfg: cfg, http: doer}
}

// StartStream begins a new streaming request. Any still-active prior
// stream is cancelled first so at most one is ever current. onText
// receives deltas in arrival order; onOutcome fires exactly once
// unless the stream is cancelled, in which case not at all.
func (c *Client) StartStream(ctx context.Context, query string, opts StreamOptions, onText func(string), onOutcome func(sse.Outcome)) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	collect := opts.Citations && (opts.Mode == ModeSearch || opts.Mode == "")
	stream := &Stream{
		session: sse.NewSession(collect, onText, onOutcome),
		cancel:  cancel,
	}

	c.mu.Lock()
	if prev := c.current; prev != nil {
		prev.Cancel()
	}
	c.current = stream
	c.mu.Unlock()

	go c.run(ctx, stream, query, opts)
	return stream
}

// Cancel aborts the current stream, if any.
func (c *Client) Cancel() {
	c.mu.Lock()
	stream := c.current
	c.current = nil
	c.mu.Unlock()
	if stream != nil {
		stream.Cancel()
	}
}

func (c *Client) run(ctx context.Context, stream *Stream, query string, opts StreamOptions) {
	defer stream.cancel()
	defer c.release(stream)

	session := stream.session
	req, err := c.newStreamRequest(ctx, query, opts)
	if err != nil {
		session.Fail(err)
		return
	}
	config.Logger.Debug("starting stream", "session", session.ID, "mode", opts.Mode)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			session.Cancel()
			return
		}
		session.Fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		session.Fail(statusError(resp))
		return
	}
	session.Consume(ctx, resp.Body)
}

// release clears the current-stream slot, but only if it still points
// at this stream: a replacement started meanwhile must not be evicted.
func (c *Client) release(stream *Stream) {
	c.mu.Lock()
	if c.current == stream {
		c.current = nil
	}
	c.mu.Unlock()
}
