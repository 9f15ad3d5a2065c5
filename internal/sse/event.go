package sse

import "strings"

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// EventKind classifies one complete stream line.
type EventKind int

const (
	// EventSkip marks comments, keep-alives, blank lines and empty
	// payloads. They carry nothing and are discarded silently.
	EventSkip EventKind = iota
	// EventData marks a line whose payload should be parsed.
	EventData
	// EventDone marks the explicit end-of-stream sentinel.
	EventDone
)

// ParseEventLine classifies a line and returns its payload for
// EventData. Lines not starting with the data prefix are protocol
// noise, not errors.
func ParseEventLine(line string) (string, EventKind) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return "", EventSkip
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	switch payload {
	case doneSentinel:
		return "", EventDone
	case "":
		return "", EventSkip
	}
	return payload, EventData
}
