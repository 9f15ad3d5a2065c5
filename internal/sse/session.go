package sse

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"mediq/internal/config"
)

// ErrEmptyStream reports a transport that ended cleanly without ever
// delivering content. The backend never sends a legitimately empty
// answer, so zero tokens is a failure, not a vacuous success.
var ErrEmptyStream = errors.New("stream ended without content")

// Outcome is the single terminal result of a session: citations on
// success, a cause on failure. A cancelled session produces no
// Outcome at all.
type Outcome struct {
	Citations []Citation
	Err       error
}

// Session states. All states except StateActive are terminal.
const (
	StateActive int32 = iota
	StateCompleted
	StateFailed
	StateCancelled
)

// Session ingests one event stream: it reassembles lines from raw
// chunks, extracts text deltas and capture-once citations, and
// reports exactly one Outcome. The terminal transition is guarded by
// a single atomic state word; late reads, late errors and duplicate
// triggers after that are no-ops regardless of what the transport
// keeps doing.
type Session struct {
	ID string

	collectCitations bool
	onText           func(string)
	onOutcome        func(Outcome)

	state      atomic.Int32
	dec        LineDecoder
	citations  []Citation
	captured   bool
	gotContent bool
}

// NewSession builds a session for one request. onText receives deltas
// in arrival order; onOutcome fires at most once.
func NewSession(collectCitations bool, onText func(string), onOutcome func(Outcome)) *Session {
	return &Session{
		ID:               uuid.NewString(),
		collectCitations: collectCitations,
		onText:           onText,
		onOutcome:        onOutcome,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() int32 { return s.state.Load() }

func (s *Session) terminal() bool { return s.state.Load() != StateActive }

// Cancel moves the session to Cancelled. No callback fires for
// cancellation: the caller asked for it, so reporting it as success
// or failure would be noise. The owner is expected to also cancel the
// request context so the blocked body read aborts.
func (s *Session) Cancel() {
	if s.state.CompareAndSwap(StateActive, StateCancelled) {
		config.Logger.Debug("stream cancelled", "session", s.ID)
	}
}

// Consume reads the stream body to termination. It blocks until a
// terminal transition and must be called at most once.
func (s *Session) Consume(ctx context.Context, body io.Reader) {
	buf := make([]byte, 4096)
	for {
		if s.terminal() {
			return
		}
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range s.dec.Feed(buf[:n]) {
				if s.handleLine(line) {
					return
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.finishEOF()
			case ctx.Err() != nil:
				// Read aborted by cancellation, not by the network.
				s.Cancel()
			default:
				s.fail(err)
			}
			return
		}
		if ctx.Err() != nil {
			s.Cancel()
			return
		}
	}
}

// handleLine feeds one complete line through the event path and
// reports whether the session reached a terminal state. Once the
// sentinel is seen, any lines still buffered behind it are ignored.
func (s *Session) handleLine(line string) bool {
	payload, kind := ParseEventLine(line)
	switch kind {
	case EventDone:
		s.complete()
		return true
	case EventSkip:
		return s.terminal()
	}

	chunk, ok := ParsePayload(payload)
	if !ok {
		// One malformed event never fails the whole stream.
		return s.terminal()
	}
	if s.collectCitations && !s.captured {
		if citations, found := ExtractCitations(chunk); found {
			s.citations = citations
			s.captured = true
		}
	}
	if delta := ExtractDelta(chunk); delta != "" {
		if s.terminal() {
			return true
		}
		s.gotContent = true
		s.onText(delta)
	}
	return s.terminal()
}

// finishEOF handles end-of-data without an explicit sentinel: the
// carry buffer is flushed through the normal per-line path, then the
// session completes if it ever produced content and fails otherwise.
func (s *Session) finishEOF() {
	if line, ok := s.dec.Flush(); ok {
		if s.handleLine(line) {
			return
		}
	}
	if s.gotContent {
		s.complete()
		return
	}
	s.fail(ErrEmptyStream)
}

func (s *Session) complete() {
	if !s.state.CompareAndSwap(StateActive, StateCompleted) {
		return
	}
	config.Logger.Debug("stream completed", "session", s.ID, "citations", len(s.citations))
	s.onOutcome(Outcome{Citations: s.citations})
}

// Fail records a transport-level failure. Exposed so the client can
// route pre-stream errors (connect failures, bad status) through the
// same completion guard as mid-stream ones.
func (s *Session) Fail(err error) { s.fail(err) }

func (s *Session) fail(err error) {
	if !s.state.CompareAndSwap(StateActive, StateFailed) {
		return
	}
	config.Logger.Debug("stream failed", "session", s.ID, "error", err)
	s.onOutcome(Outcome{Err: err})
}
