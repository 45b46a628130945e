package streaming

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/pkg/types"
)

// sseOutPrefix is the canonical outbound frame prefix. The reader accepts
// the space-less form (see ssePrefix), but emitted frames keep the space.
const sseOutPrefix = "data: "

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// Forwarder writes normalized events to a client as SSE.
type Forwarder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewForwarder prepares SSE headers on the response and returns a forwarder.
// Returns an error when the writer cannot flush.
func NewForwarder(w http.ResponseWriter) (*Forwarder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Forwarder{w: w, flusher: flusher}, nil
}

// Send writes one event as a data: line and flushes it.
func (f *Forwarder) Send(ev *types.StreamEvent) error {
	bufp := bufPool.Get().(*[]byte)
	buf := (*bufp)[:0]
	defer func() {
		*bufp = buf
		bufPool.Put(bufp)
	}()

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	buf = append(buf, sseOutPrefix...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')

	if _, err := f.w.Write(buf); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

// Done writes the terminating [DONE] sentinel.
func (f *Forwarder) Done() error {
	if _, err := fmt.Fprintf(f.w, "%s%s\n\n", sseOutPrefix, sseDone); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}
