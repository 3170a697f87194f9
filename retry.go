package supervise

import (
	"context"
	"time"

	"andy.dev/supervise/backoff"
)

// budget tracks the attempts used for one failure kind. used starts at 1 for
// every run and never exceeds max.
type budget struct {
	kind  Kind
	used  int
	max   int
	delay backoff.Iterator
}

func newBudget(kind Kind, max int, newIter func() backoff.Iterator) *budget {
	b := &budget{kind: kind, used: 1, max: max, delay: backoff.None()}
	if newIter != nil {
		b.delay = newIter()
	}
	return b
}

// next is called after a failure of b's kind. It reports whether another
// attempt is allowed and, if so, the pause to apply before it.
func (b *budget) next() (time.Duration, bool) {
	if b.used >= b.max {
		return 0, false
	}
	b.used++
	d := b.delay()
	if d < 0 {
		d = 0
	}
	return d, true
}

// sleep pauses for d, returning the cancellation cause of ctx if it is done
// first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	t := time.NewTimer(d)
	select {
	case <-ctx.Done():
		t.Stop()
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
