package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediq/internal/config"
	"mediq/internal/replay"
	"mediq/internal/sse"
)

const testToken = "test-token"

func newReplayServer(t *testing.T, script *replay.Script) *httptest.Server {
	t.Helper()
	srv := &replay.Server{Script: script, Token: testToken}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(baseURL, token string) *Client {
	cfg := config.Config{BaseURL: baseURL, Token: token, Timeout: 10 * time.Second}
	return NewWithDoer(cfg, &http.Client{Timeout: 10 * time.Second})
}

type streamSinks struct {
	deltas   chan string
	outcomes chan sse.Outcome
}

func newSinks() *streamSinks {
	return &streamSinks{deltas: make(chan string, 128), outcomes: make(chan sse.Outcome, 1)}
}

func (s *streamSinks) onText(d string) { s.deltas <- d }

func (s *streamSinks) onOutcome(o sse.Outcome) { s.outcomes <- o }

func (s *streamSinks) waitOutcome(t *testing.T) sse.Outcome {
	t.Helper()
	select {
	case o := <-s.outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return sse.Outcome{}
	}
}

func (s *streamSinks) drainDeltas() []string {
	var out []string
	for {
		select {
		case d := <-s.deltas:
			out = append(out, d)
		default:
			return out
		}
	}
}

type captureDoer struct {
	req  *http.Request
	body []byte
}

func (d *captureDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	d.body, _ = io.ReadAll(req.Body)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader("data: {\"content\":\"ok\"}\ndata: [DONE]\n")),
	}, nil
}

func TestStartStreamRequestShape(t *testing.T) {
	doer := &captureDoer{}
	client := NewWithDoer(config.Config{BaseURL: "https://backend.test", Token: "tok"}, doer)
	sinks := newSinks()

	client.StartStream(context.Background(), "chest pain workup", StreamOptions{
		Mode:     ModeReason,
		Clinical: true,
	}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.NoError(t, outcome.Err)

	req := doer.req
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://backend.test/api/v1/chat/stream", req.URL.String())
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.NotEmpty(t, req.Header.Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(doer.body, &body))
	assert.Equal(t, "chest pain workup", body["query"])
	assert.Equal(t, "reason", body["mode"])
	assert.Equal(t, true, body["isReason"])
	assert.Equal(t, false, body["isWrite"])
	assert.Equal(t, true, body["isClinical"])
	assert.Equal(t, true, body["stream"])
}

func TestClientStreamsFromReplayServer(t *testing.T) {
	ts := newReplayServer(t, replay.DefaultScript())
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "hello there", StreamOptions{Mode: ModeSearch}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "Hello from replayd.", strings.Join(sinks.drainDeltas(), ""))
}

func TestClientCollectsCitationsInSearchMode(t *testing.T) {
	script := &replay.Script{Scenarios: []replay.Scenario{{
		Name: "cited",
		Frames: []string{
			`data: {"citations":["https://pubmed.ncbi.nlm.nih.gov/123"]}`,
			`data: {"choices":[{"delta":{"content":"Evidence says yes."}}]}`,
			`data: [DONE]`,
		},
	}}}
	ts := newReplayServer(t, script)
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "statins in primary prevention", StreamOptions{
		Mode:      ModeSearch,
		Citations: true,
	}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, 1, outcome.Citations[0].Number)
	assert.Equal(t, "PubMed", outcome.Citations[0].Title)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/123", outcome.Citations[0].URL)
}

func TestClientSkipsCitationsOutsideSearchMode(t *testing.T) {
	script := &replay.Script{Scenarios: []replay.Scenario{{
		Name: "cited",
		Frames: []string{
			`data: {"citations":["https://pubmed.ncbi.nlm.nih.gov/123"],"content":"answer"}`,
			`data: [DONE]`,
		},
	}}}
	ts := newReplayServer(t, script)
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "q", StreamOptions{Mode: ModeWrite, Citations: true}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.NoError(t, outcome.Err)
	assert.Empty(t, outcome.Citations)
}

func TestClientSurfacesStatusError(t *testing.T) {
	ts := newReplayServer(t, replay.DefaultScript())
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "please overload the backend", StreamOptions{Mode: ModeSearch}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.Error(t, outcome.Err)

	var se *StatusError
	require.ErrorAs(t, outcome.Err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "overloaded", se.Message)
	assert.Empty(t, sinks.drainDeltas())
}

func TestClientUnauthorized(t *testing.T) {
	ts := newReplayServer(t, replay.DefaultScript())
	client := newTestClient(ts.URL, "wrong-token")
	sinks := newSinks()

	client.StartStream(context.Background(), "hello", StreamOptions{}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)

	var se *StatusError
	require.ErrorAs(t, outcome.Err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "invalid credentials", se.Message)
}

func TestClientEmptyStreamFails(t *testing.T) {
	script := &replay.Script{Scenarios: []replay.Scenario{{Name: "empty"}}}
	ts := newReplayServer(t, script)
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "anything", StreamOptions{}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	assert.ErrorIs(t, outcome.Err, sse.ErrEmptyStream)
}

func slowScript() *replay.Script {
	frames := make([]string, 0, 22)
	for i := 0; i < 20; i++ {
		frames = append(frames, `data: {"content":"tick "}`)
	}
	frames = append(frames, `data: [DONE]`)
	return &replay.Script{
		Default: "slow",
		Scenarios: []replay.Scenario{
			{Name: "slow", Match: "slow", DelayMS: 50, Frames: frames},
			{Name: "fast", Match: "fast", Frames: []string{`data: {"content":"done"}`, `data: [DONE]`}},
		},
	}
}

func TestStartStreamCancelsPriorSession(t *testing.T) {
	ts := newReplayServer(t, slowScript())
	client := newTestClient(ts.URL, testToken)

	first := newSinks()
	client.StartStream(context.Background(), "slow question", StreamOptions{}, first.onText, first.onOutcome)
	select {
	case <-first.deltas:
	case <-time.After(5 * time.Second):
		t.Fatal("first stream never produced a delta")
	}

	second := newSinks()
	client.StartStream(context.Background(), "fast question", StreamOptions{}, second.onText, second.onOutcome)
	outcome := second.waitOutcome(t)
	require.NoError(t, outcome.Err)

	// The replaced session was cancelled: no outcome, ever.
	select {
	case o := <-first.outcomes:
		t.Fatalf("cancelled stream reported an outcome: %#v", o)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestClientCancelSuppressesOutcome(t *testing.T) {
	ts := newReplayServer(t, slowScript())
	client := newTestClient(ts.URL, testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "slow question", StreamOptions{}, sinks.onText, sinks.onOutcome)
	select {
	case <-sinks.deltas:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never produced a delta")
	}
	client.Cancel()

	select {
	case o := <-sinks.outcomes:
		t.Fatalf("cancelled stream reported an outcome: %#v", o)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestClientConnectErrorFails(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", testToken)
	sinks := newSinks()

	client.StartStream(context.Background(), "unreachable", StreamOptions{}, sinks.onText, sinks.onOutcome)
	outcome := sinks.waitOutcome(t)
	require.Error(t, outcome.Err)
	var se *StatusError
	assert.False(t, errors.As(outcome.Err, &se), "connect errors are not status errors")
}
