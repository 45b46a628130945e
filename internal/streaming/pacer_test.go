package streaming

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSlices(t *testing.T) {
	p := NewPacer()

	assert.Equal(t, []string{"short"}, p.Slices("short"))

	long := strings.Repeat("abcd", 20) // 80 chars
	slices := p.Slices(long)
	require.Len(t, slices, 3)
	assert.Equal(t, 32, len([]rune(slices[0])))
	assert.Equal(t, 32, len([]rune(slices[1])))
	assert.Equal(t, 16, len([]rune(slices[2])))
	assert.Equal(t, long, strings.Join(slices, ""))
}

func TestPacerSlicesRuneSafe(t *testing.T) {
	p := NewPacer()
	token := strings.Repeat("日本語テキスト", 12) // 72 runes

	slices := p.Slices(token)
	require.Len(t, slices, 3)
	assert.Equal(t, token, strings.Join(slices, ""))
	for _, s := range slices {
		assert.True(t, len([]rune(s)) <= 32)
	}
}

func TestPacerEmitPacing(t *testing.T) {
	p := NewPacer()
	var waits []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	var got []string
	err := p.Emit(context.Background(), strings.Repeat("x", 70), func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// No wait before the first slice, one gap between each following slice.
	require.Len(t, waits, 2)
	assert.Equal(t, DefaultSliceGap, waits[0])
}

func TestPacerEmitContextCancel(t *testing.T) {
	p := NewPacer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Emit(ctx, strings.Repeat("x", 100), func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
