package streaming

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polydev-ai/polygate/pkg/types"
)

func TestForwarderSendsSSE(t *testing.T) {
	rec := httptest.NewRecorder()
	f, err := NewForwarder(rec)
	require.NoError(t, err)

	require.NoError(t, f.Send(&types.StreamEvent{Type: types.EventDelta, Token: "hi"}))
	require.NoError(t, f.Done())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"type":"delta","token":"hi"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}
