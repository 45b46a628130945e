// Package streaming normalizes upstream model output streams. Providers ship
// three framings in the wild: SSE with data: lines, bare JSON objects one per
// line, and a single JSON document (sometimes wrapped in array brackets, as
// Gemini does). The reader folds all three into one event sequence.
package streaming

import (
	"bufio"
	"bytes"
	"io"

	"github.com/polydev-ai/polygate/pkg/types"
)

const (
	// The space after the colon is optional in SSE; both "data: x" and
	// "data:x" frame the same payload.
	ssePrefix   = "data:"
	sseDone     = "[DONE]"
	eventPrefix = "event:"

	initialBufSize = 4096
	maxBufSize     = 1 << 20
)

// ChunkParser interprets one JSON block from an upstream stream.
// transform.Transformer satisfies it.
type ChunkParser interface {
	ParseStreamChunk(data []byte) (*types.StreamEvent, error)
}

// Reader pulls normalized events out of an upstream response body.
type Reader struct {
	scanner *bufio.Scanner
	parser  ChunkParser
	body    io.ReadCloser

	// pending accumulates lines of a JSON document that spans multiple
	// reads, so partial blocks never produce partial tokens.
	pending []byte
	done    bool
}

// NewReader wraps an upstream body. The caller owns closing the reader.
func NewReader(body io.ReadCloser, parser ChunkParser) *Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, initialBufSize), maxBufSize)
	return &Reader{
		scanner: scanner,
		parser:  parser,
		body:    body,
	}
}

// Recv returns the next normalized event, or io.EOF when the stream ends.
// Malformed blocks are skipped, never fatal.
func (r *Reader) Recv() (*types.StreamEvent, error) {
	if r.done {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// SSE event name lines only label the data line that follows; the
		// payload itself carries the type for every family we parse.
		if bytes.HasPrefix(line, []byte(eventPrefix)) {
			continue
		}

		if bytes.HasPrefix(line, []byte(ssePrefix)) {
			payload := bytes.TrimSpace(line[len(ssePrefix):])
			if bytes.Equal(payload, []byte(sseDone)) {
				r.done = true
				return nil, io.EOF
			}
			if ev := r.parseBlock(payload); ev != nil {
				return ev, nil
			}
			continue
		}

		// Array framing around JSON-document streams.
		trimmed := bytes.Trim(line, "[],")
		trimmed = bytes.TrimSpace(trimmed)
		if len(trimmed) == 0 {
			continue
		}

		if ev := r.parseBlock(trimmed); ev != nil {
			return ev, nil
		}
	}

	// Flush whatever the final read left behind.
	if len(r.pending) > 0 {
		payload := r.pending
		r.pending = nil
		if ev, err := r.parser.ParseStreamChunk(payload); err == nil && ev != nil {
			return ev, nil
		}
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// parseBlock parses a JSON block, buffering across lines when a document is
// split mid-object.
func (r *Reader) parseBlock(payload []byte) *types.StreamEvent {
	if len(r.pending) > 0 {
		r.pending = append(r.pending, payload...)
		payload = append([]byte(nil), r.pending...)
	}

	ev, err := r.parser.ParseStreamChunk(payload)
	if err == nil {
		r.pending = nil
		return ev
	}

	// An object with unbalanced braces is a document still arriving; keep
	// buffering. Balanced-but-unparseable blocks are malformed and dropped.
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) && !braceBalanced(payload) {
		r.pending = append(r.pending[:0], payload...)
		return nil
	}
	r.pending = nil
	return nil
}

// braceBalanced reports whether every brace outside string literals closes.
func braceBalanced(b []byte) bool {
	depth := 0
	inString := false
	escaped := false
	for _, c := range b {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
			}
		}
	}
	return depth == 0 && !inString
}

// Close releases the underlying body.
func (r *Reader) Close() error {
	return r.body.Close()
}
