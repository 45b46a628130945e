package orchestrate

import (
	"context"
	"sync"

	"github.com/polydev-ai/polygate/internal/streaming"
	"github.com/polydev-ai/polygate/pkg/types"
)

// FanOut runs one orchestration per requested model concurrently and
// returns the outcomes in request order. A failed model never disturbs
// its siblings.
func (o *Orchestrator) FanOut(ctx context.Context, req *types.ChatRequest, models []string, opts Options) []*Outcome {
	outcomes := make([]*Outcome, len(models))
	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			outcomes[i] = o.Run(ctx, req, model, opts)
		}(i, model)
	}
	wg.Wait()
	return outcomes
}

// AggregateUsage sums token usage across a fan-out's outcomes.
func AggregateUsage(outs []*Outcome) types.Usage {
	var total types.Usage
	for _, out := range outs {
		u := out.Usage
		total.Add(&u)
	}
	return total
}

// FanOutStream runs one streaming orchestration per model, interleaving
// their paced events onto a single send function. After every model
// finishes it sends one summary event and one final event. The caller owns
// the stream terminator.
func (o *Orchestrator) FanOutStream(ctx context.Context, req *types.ChatRequest, models []string, opts Options, send func(*types.StreamEvent) error) []*Outcome {
	var mu sync.Mutex
	locked := func(ev *types.StreamEvent) error {
		mu.Lock()
		defer mu.Unlock()
		return send(ev)
	}

	outcomes := make([]*Outcome, len(models))
	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			pacer := streaming.NewPacer()
			emit := func(ev *types.StreamEvent) error {
				if ev.Type != types.EventDelta {
					return locked(ev)
				}
				return pacer.Emit(ctx, ev.Token, func(slice string) error {
					return locked(&types.StreamEvent{
						Type:  types.EventDelta,
						Model: ev.Model,
						Token: slice,
					})
				})
			}
			outcomes[i] = o.RunStream(ctx, req, model, opts, emit)
		}(i, model)
	}
	wg.Wait()

	summary := make([]types.ModelResult, len(outcomes))
	final := make([]types.ModelResult, len(outcomes))
	for i, out := range outcomes {
		res := out.Result()
		full := res
		full.Content = out.Content
		res.Cost = 0
		summary[i] = res
		final[i] = full
	}

	usage := AggregateUsage(outcomes)

	mu.Lock()
	defer mu.Unlock()
	if err := send(&types.StreamEvent{Type: types.EventSummary, Results: summary, Usage: &usage}); err != nil {
		return outcomes
	}
	send(&types.StreamEvent{Type: types.EventFinal, Results: final}) //nolint:errcheck // terminal event
	return outcomes
}
