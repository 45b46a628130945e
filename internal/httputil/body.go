// Package httputil bounds payload reads on both legs of the gateway.
package httputil

import (
	"bytes"
	"errors"
	"io"
)

// DefaultMaxBodyBytes caps a body at 10MB when the caller passes no limit.
const DefaultMaxBodyBytes int64 = 10 << 20

// ErrBodyTooLarge reports a body that exceeded its read limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// ReadLimitedBody reads at most limit bytes and fails with ErrBodyTooLarge
// when the body is longer, so a single oversized chat request cannot pin
// the process.
func ReadLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, ErrBodyTooLarge
	}
	return buf.Bytes(), nil
}
