package sse

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// LineDecoder reassembles newline-delimited lines from raw transport
// chunks. Chunks may be split anywhere, including mid-line and mid
// multi-byte rune: splitting happens on the byte level before any
// decoding, so a rune truncated at a chunk boundary simply stays in
// the carry buffer until its remaining bytes arrive.
type LineDecoder struct {
	carry []byte
}

// Feed appends a chunk and returns every completed line, in order.
// Line endings are "\n" or "\r\n"; the terminator is stripped. An
// incomplete trailing line is held back for the next Feed or Flush.
func (d *LineDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.carry = append(d.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, decodeLine(d.carry[:i]))
		d.carry = d.carry[i+1:]
	}
	if len(d.carry) == 0 {
		d.carry = nil
	}
	return lines
}

// Flush returns the remaining carry buffer as a final line, if any.
// Call once, at end of stream.
func (d *LineDecoder) Flush() (string, bool) {
	if len(d.carry) == 0 {
		return "", false
	}
	line := decodeLine(d.carry)
	d.carry = nil
	return line, true
}

// decodeLine strips a trailing \r and drops any invalid UTF-8 bytes.
// Malformed upstream data must not abort an otherwise-healthy stream,
// so bad segments are skipped rather than surfaced.
func decodeLine(b []byte) string {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}
