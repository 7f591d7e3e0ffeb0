package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPokeInterval is the minimum time between two progress deliveries.
const DefaultPokeInterval = 200 * time.Millisecond

// flusher accumulates output for the current batch and decides when to hand
// it off. It belongs to a single run and is only used by its worker.
type flusher struct {
	gen     uint64
	limiter *rate.Limiter // nil: every poke is delivered
	now     func() time.Time
	deliver func(Poke)

	pending *Batch
}

func newFlusher(gen uint64, interval time.Duration, now func() time.Time, deliver func(Poke)) *flusher {
	f := &flusher{gen: gen, now: now, deliver: deliver, pending: &Batch{}}
	if interval > 0 {
		f.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return f
}

func (f *flusher) add(spans ...TextSpan) {
	f.pending.Spans = append(f.pending.Spans, spans...)
}

// poke delivers the pending batch if the throttle allows it. It returns the
// context error when the run has been cancelled, in which case nothing is
// delivered.
func (f *flusher) poke(ctx context.Context, stats Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.limiter != nil && !f.limiter.AllowN(f.now(), 1) {
		return nil
	}
	f.handoff(stats, false)
	return nil
}

// force delivers the pending batch regardless of the throttle.
func (f *flusher) force(stats Stats, final bool) {
	f.handoff(stats, final)
}

func (f *flusher) handoff(stats Stats, final bool) {
	b := f.pending
	if !final {
		b.Progress = stats.Progress()
	}
	b.Stats = stats
	b.Final = final
	f.pending = &Batch{}
	f.deliver(Poke{Generation: f.gen, Batch: b})
}
