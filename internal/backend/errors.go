package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mediq/internal/util"
)

const maxErrorBody = 64 * 1024

// StatusError reports a non-success HTTP status from the backend,
// with the human-readable message extracted from the error body when
// one could be found.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

// statusError resolves a non-2xx response into a StatusError by
// probing the error body for a message. An unreadable or opaque body
// falls back to the bare status.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Message: decodeErrorMessage(body)}
}

// decodeErrorMessage probes the known error-body shapes:
// {"error":{"message":...}}, {"error":"..."} and {"message":"..."}.
func decodeErrorMessage(body []byte) string {
	payload := map[string]any{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch e := payload["error"].(type) {
	case map[string]any:
		if msg := util.StringFrom(e["message"]); msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}
	return util.StringFrom(payload["message"])
}
