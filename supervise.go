package supervise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDeadline = 4 * time.Hour
	DefaultMaxTries = 1
)

// Task is an operation supervised by an [Engine]. The context is cancelled
// when the attempt runs out of time, when the worker is abandoned and when the
// supervision is interrupted. Tasks should return promptly once it is done;
// a task that ignores it keeps running in the background after it has been
// given up on.
type Task[T any] func(ctx context.Context) (T, error)

// Func adapts a function that takes no context into a [Task]. Such a task can
// not be cancelled, so every timed out attempt leaks its goroutine until the
// function returns on its own.
func Func[T any](fn func() (T, error)) Task[T] {
	return func(context.Context) (T, error) {
		return fn()
	}
}

// Engine supervises runs of a task. Its configuration is fixed at creation.
//
// An Engine may be reused for sequential runs, but must not be used by
// several goroutines at once. Use one Engine per concurrent caller.
type Engine[T any] struct {
	opts opts
	last *Outcome[T]
}

// New returns an Engine configured with options. See the package
// documentation for the defaults.
func New[T any](options ...Option) *Engine[T] {
	e := &Engine[T]{}
	for _, o := range options {
		o(&e.opts)
	}
	applyDefaults(&e.opts)
	return e
}

// Run is a shortcut for New[T](options...).Run(ctx, task).
func Run[T any](ctx context.Context, task Task[T], options ...Option) (*Outcome[T], error) {
	return New[T](options...).Run(ctx, task)
}

// Policy returns the effective scalar settings of the engine. Delays set with
// [TimeoutBackoff] or [ErrorBackoff] are reported as zero.
func (e *Engine[T]) Policy() Policy {
	return Policy{
		Deadline:        e.opts.deadline,
		MaxTimeoutTries: e.opts.maxTimeoutTries,
		MaxErrorTries:   e.opts.maxErrorTries,
		TimeoutDelay:    e.opts.timeoutFixed,
		ErrorDelay:      e.opts.errorFixed,
	}
}

// Last returns the outcome of the most recent run, or nil if the engine has
// never been run.
func (e *Engine[T]) Last() *Outcome[T] {
	return e.last
}

// Run executes task until it succeeds, one of the retry budgets is exhausted
// or ctx is cancelled, and returns the outcome. Attempts run one after the
// other on a dedicated goroutine, each bounded by the deadline.
//
// Exhaustion is not reported here: it is resolved through the returned
// [*Outcome]. The error is non-nil only when ctx was cancelled, in which case
// it is an [*InterruptedError] and the outcome reports the same error from all
// of its methods.
func (e *Engine[T]) Run(ctx context.Context, task Task[T]) (*Outcome[T], error) {
	if task == nil {
		panic("supervise: nil task")
	}
	r := &run[T]{
		id:       uuid.New(),
		opts:     &e.opts,
		timeouts: newBudget(KindTimeout, e.opts.maxTimeoutTries, e.opts.timeoutDelay),
		errs:     newBudget(KindError, e.opts.maxErrorTries, e.opts.errorDelay),
	}
	out := r.execute(ctx, task)
	e.last = out
	if out.state == StateInterrupted {
		return out, out.err
	}
	return out, nil
}

// run holds the state of a single call to Engine.Run.
type run[T any] struct {
	id       uuid.UUID
	opts     *opts
	timeouts *budget
	errs     *budget
	slot     slot[T]
	try      int
	start    time.Time
}

func (r *run[T]) execute(ctx context.Context, task Task[T]) *Outcome[T] {
	r.start = time.Now()
	r.logf("Starting managed parallel single thread (run %s)", r.id)
	defer r.slot.abandon(context.Canceled)

	for {
		r.try++
		r.logf("\tRunning %d of %d on timeout retrying", r.timeouts.used, r.timeouts.max)
		r.logf("\tRunning %d of %d on error retrying", r.errs.used, r.errs.max)

		actx := context.WithValue(ctx, statusCtxKey, Status{RunID: r.id, TryNumber: r.try})
		r.logf("\tWaiting running")
		res := r.slot.submit(actx, task, r.opts.deadline)

		var b *budget
		switch res.sig {
		case sigValue:
			r.logf("Ending process WITH NO ERRORS")
			return r.finish(StateSuccess, res.val, nil)
		case sigInterrupt:
			r.logf("Ending process INTERRUPTED: %v", res.err)
			return r.finish(StateInterrupted, *new(T), errInterrupted(res.err))
		case sigTimeout:
			b = r.timeouts
		default:
			b = r.errs
		}

		r.logf("Error %s %d of %d: %v", strings.ToUpper(b.kind.String()), b.used, b.max, res.err)
		st := Status{
			RunID:     r.id,
			TryNumber: r.try,
			Kind:      b.kind,
			Tries:     b.used,
			MaxTries:  b.max,
			Err:       res.err,
		}
		delay, retry := b.next()
		st.NextDelay, st.Final = delay, !retry
		r.notify(st)

		if !retry {
			if b.kind == KindTimeout {
				r.logf("Ending process WITH timeout final error")
				return r.finish(StateTimedOut, *new(T), errTimeout(r.opts.deadline, st.Tries))
			}
			r.logf("Ending process WITH execution final error")
			return r.finish(StateFailed, *new(T), errExecution(st.Tries, res.err))
		}
		if err := sleep(ctx, delay); err != nil {
			r.logf("Ending process INTERRUPTED during retry delay: %v", err)
			return r.finish(StateInterrupted, *new(T), errInterrupted(err))
		}
	}
}

func (r *run[T]) finish(state State, val T, err error) *Outcome[T] {
	out := &Outcome[T]{
		state:     state,
		val:       val,
		err:       err,
		onTimeout: r.opts.onTimeout,
		onError:   r.opts.onError,
		report: Report{
			RunID:    r.id,
			State:    state,
			Attempts: r.try,
			Duration: time.Since(r.start),
			Err:      err,
		},
	}
	for _, obs := range r.opts.observers {
		obs.ObserveRun(out.report)
	}
	return out
}

func (r *run[T]) notify(st Status) {
	if r.opts.eachFn != nil {
		r.opts.eachFn(st)
	}
	for _, obs := range r.opts.observers {
		obs.ObserveAttempt(st)
	}
}

func (r *run[T]) logf(format string, a ...any) {
	if r.opts.logFn != nil {
		r.opts.logFn(fmt.Sprintf(format, a...))
	}
}
