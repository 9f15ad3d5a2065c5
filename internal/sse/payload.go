package sse

import (
	"encoding/json"

	"mediq/internal/util"
)

// ParsePayload unmarshals an event payload as a JSON object. A
// malformed payload is not an error: the stream keeps going and the
// line is dropped.
func ParsePayload(payload string) (map[string]any, bool) {
	chunk := map[string]any{}
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, false
	}
	return chunk, true
}

// ExtractDelta probes the known content shapes in fixed priority
// order: choices[0].delta.content, choices[0].message.content, then
// top-level content and text. The first non-empty match wins; no
// match means the event simply carried no text.
func ExtractDelta(chunk map[string]any) string {
	if choice := firstChoice(chunk); choice != nil {
		if s := nestedString(choice, "delta", "content"); s != "" {
			return s
		}
		if s := nestedString(choice, "message", "content"); s != "" {
			return s
		}
	}
	if s := util.StringFrom(chunk["content"]); s != "" {
		return s
	}
	return util.StringFrom(chunk["text"])
}

// ExtractCitations pulls the citation list out of an event, in either
// recognized shape. The boolean reports whether normalization kept at
// least one entry: an event whose candidates are all malformed does
// not count as carrying citations, so a later event can still supply
// them.
func ExtractCitations(chunk map[string]any) ([]Citation, bool) {
	items, ok := chunk["citations"].([]any)
	if !ok || len(items) == 0 {
		return nil, false
	}
	var citations []Citation
	if hasStructured(items) {
		citations = normalizeStructured(items)
	} else {
		citations = normalizeURLList(items)
	}
	if len(citations) == 0 {
		return nil, false
	}
	return citations, true
}

func hasStructured(items []any) bool {
	for _, it := range items {
		if _, ok := it.(map[string]any); ok {
			return true
		}
	}
	return false
}

func firstChoice(chunk map[string]any) map[string]any {
	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, _ := choices[0].(map[string]any)
	return choice
}

func nestedString(m map[string]any, outer, inner string) string {
	wrapped, ok := m[outer].(map[string]any)
	if !ok {
		return ""
	}
	return util.StringFrom(wrapped[inner])
}
