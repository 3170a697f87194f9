package supervise

// Recovery is the behavior applied by [Outcome.Result] to an exhausted run.
// It receives the *TimeoutError or *ExecutionError of the run. Returning nil
// swallows the failure and the result is the zero value; returning an error,
// the same one or another, propagates it.
type Recovery func(err error) error

// Propagate is the default [Recovery]. It returns err unchanged.
func Propagate(err error) error {
	return err
}

// Outcome is the terminal state of a run. It is immutable; a later run of the
// same [Engine] produces a new Outcome and leaves this one untouched.
//
// All resolution methods may be called any number of times, in any order. An
// interrupted run reports its *InterruptedError from every one of them.
type Outcome[T any] struct {
	state     State
	val       T
	err       error
	onTimeout Recovery
	onError   Recovery
	report    Report
}

// State returns the terminal state of the run.
func (o *Outcome[T]) State() State {
	return o.state
}

// Err returns the exhaustion or interruption error of the run, without
// applying any recovery. It is nil on success.
func (o *Outcome[T]) Err() error {
	return o.err
}

// Attempts returns the number of attempts made.
func (o *Outcome[T]) Attempts() int {
	return o.report.Attempts
}

// Report returns the summary of the run.
func (o *Outcome[T]) Report() Report {
	return o.report
}

// Result returns the value produced by the task. On exhaustion it applies the
// configured [Recovery] for the failure kind, see [OnTimeoutExhausted] and
// [OnErrorExhausted].
func (o *Outcome[T]) Result() (T, error) {
	return o.ResultHandling(nil, nil)
}

// ResultOr returns the value produced by the task, or def if the run was
// exhausted. The configured [Recovery] is not called.
func (o *Outcome[T]) ResultOr(def T) (T, error) {
	return o.ResultHandling(constant[T](def), constant[T](def))
}

// ResultOrOnTimeout returns def if the run ran out of timeout retries. An
// exhausted error budget is resolved like [Outcome.Result].
func (o *Outcome[T]) ResultOrOnTimeout(def T) (T, error) {
	return o.ResultHandling(nil, constant[T](def))
}

// ResultOrOnError returns def if the run ran out of error retries. An exhausted
// timeout budget is resolved like [Outcome.Result].
func (o *Outcome[T]) ResultOrOnError(def T) (T, error) {
	return o.ResultHandling(constant[T](def), nil)
}

// ResultHandling returns the value produced by the task, or the value computed
// by onError or onTimeout from the exhaustion error of the run. A nil function
// falls back to the configured [Recovery] for that kind.
func (o *Outcome[T]) ResultHandling(onError, onTimeout func(error) T) (T, error) {
	var zero T
	switch o.state {
	case StateSuccess:
		return o.val, nil
	case StateTimedOut:
		if onTimeout != nil {
			return onTimeout(o.err), nil
		}
		return zero, o.onTimeout(o.err)
	case StateFailed:
		if onError != nil {
			return onError(o.err), nil
		}
		return zero, o.onError(o.err)
	default:
		return zero, o.err
	}
}

func constant[T any](v T) func(error) T {
	return func(error) T { return v }
}
