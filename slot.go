package supervise

import (
	"context"
	"runtime/debug"
	"time"
)

type signal uint8

const (
	sigValue signal = iota
	sigTimeout
	sigError
	sigInterrupt
)

type attemptResult[T any] struct {
	sig signal
	val T
	err error
}

// slot owns the single worker of a run. Only one worker is live at a time:
// submit abandons the previous one before starting the next.
//
// Abandoning is a cancellation request. A task that ignores its context keeps
// running detached until it returns, and its result is discarded.
type slot[T any] struct {
	cancel context.CancelCauseFunc
}

// abandon requests cancellation of the current worker, if any.
func (s *slot[T]) abandon(cause error) {
	if s.cancel != nil {
		s.cancel(cause)
		s.cancel = nil
	}
}

// submit runs one attempt of task on a fresh worker and waits up to deadline
// for it to finish.
func (s *slot[T]) submit(ctx context.Context, task Task[T], deadline time.Duration) attemptResult[T] {
	s.abandon(ErrAbandoned)
	wctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel

	// buffered so an abandoned worker never blocks on send
	done := make(chan attemptResult[T], 1)
	go work(wctx, task, done)

	t := time.NewTimer(deadline)
	defer t.Stop()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			// the task most likely returned because we were cancelled
			s.abandon(context.Cause(ctx))
			return attemptResult[T]{sig: sigInterrupt, err: context.Cause(ctx)}
		}
		return r
	case <-t.C:
		s.abandon(ErrDeadline)
		return attemptResult[T]{sig: sigTimeout, err: ErrDeadline}
	case <-ctx.Done():
		s.abandon(context.Cause(ctx))
		return attemptResult[T]{sig: sigInterrupt, err: context.Cause(ctx)}
	}
}

// work is the first function on the worker goroutine's stack.
func work[T any](ctx context.Context, task Task[T], done chan<- attemptResult[T]) {
	var r attemptResult[T]
	defer func() {
		if p := recover(); p != nil {
			r = attemptResult[T]{sig: sigError, err: &PanicError{Value: p, Stack: debug.Stack()}}
		}
		done <- r
	}()
	v, err := task(ctx)
	if err != nil {
		r = attemptResult[T]{sig: sigError, err: err}
		return
	}
	r = attemptResult[T]{sig: sigValue, val: v}
}
