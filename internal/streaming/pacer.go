package streaming

import (
	"context"
	"time"
)

const (
	// Slice size and delay tuned for smooth client-side rendering when an
	// upstream delivers large chunks at once.
	DefaultSliceSize = 32
	DefaultSliceGap  = 16 * time.Millisecond
)

// Pacer re-chunks large tokens into fixed-size slices with a small delay
// between them. Slices split on rune boundaries so multi-byte characters
// are never torn.
type Pacer struct {
	SliceSize int
	Gap       time.Duration

	sleep func(context.Context, time.Duration) error
}

// NewPacer creates a pacer with the default slice size and gap.
func NewPacer() *Pacer {
	return &Pacer{
		SliceSize: DefaultSliceSize,
		Gap:       DefaultSliceGap,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Slices splits a token into rune-safe pieces of at most SliceSize runes.
func (p *Pacer) Slices(token string) []string {
	size := p.SliceSize
	if size <= 0 {
		size = DefaultSliceSize
	}

	runes := []rune(token)
	if len(runes) <= size {
		return []string{token}
	}

	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// Emit delivers each slice of token through fn, pausing between slices.
// The first slice goes out immediately.
func (p *Pacer) Emit(ctx context.Context, token string, fn func(string) error) error {
	for i, slice := range p.Slices(token) {
		if i > 0 && p.Gap > 0 {
			sleep := p.sleep
			if sleep == nil {
				sleep = sleepCtx
			}
			if err := sleep(ctx, p.Gap); err != nil {
				return err
			}
		}
		if err := fn(slice); err != nil {
			return err
		}
	}
	return nil
}
