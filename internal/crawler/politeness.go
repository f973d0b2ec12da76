package crawler

import (
	"context"
	"time"
)

// pacer spaces network requests so that consecutive request starts are at
// least interval apart. Time spent fetching and parsing counts toward the
// interval.
type pacer struct {
	interval time.Duration
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration)
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, now: time.Now, wait: sleepCtx}
}

// settle blocks until interval has passed since started, or ctx is done.
func (p *pacer) settle(ctx context.Context, started time.Time) {
	if p.interval <= 0 {
		return
	}
	if remaining := p.interval - p.now().Sub(started); remaining > 0 {
		p.wait(ctx, remaining)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
