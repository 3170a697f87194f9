package supervise

import (
	"time"

	"andy.dev/supervise/backoff"
)

// Option represents an optional supervision setting.
type Option func(o *opts)

// WithPolicy applies the settings in a [Policy] to an engine, allowing you to
// reuse a set of options for multiple engines. Zero fields in the policy fall
// back to the defaults.
func WithPolicy(p Policy) Option {
	return func(o *opts) {
		o.deadline = p.Deadline
		o.maxTimeoutTries = p.MaxTimeoutTries
		o.maxErrorTries = p.MaxErrorTries
		o.timeoutFixed, o.timeoutDelay = p.TimeoutDelay, fixedOrNil(p.TimeoutDelay)
		o.errorFixed, o.errorDelay = p.ErrorDelay, fixedOrNil(p.ErrorDelay)
	}
}

// Deadline sets the time budget of a single attempt. If this is <= 0, it will
// default to DefaultDeadline (4 * time.Hour).
func Deadline(d time.Duration) Option {
	return func(o *opts) {
		o.deadline = d
	}
}

// MaxTimeoutTries is the number of attempts allowed to exceed the deadline
// before the run is declared timed out. Values < 1 default to 1, meaning the
// first timeout is final.
func MaxTimeoutTries(tries int) Option {
	return func(o *opts) {
		o.maxTimeoutTries = tries
	}
}

// MaxErrorTries is the number of attempts allowed to fail with an error before
// the run is declared failed. Values < 1 default to 1.
func MaxErrorTries(tries int) Option {
	return func(o *opts) {
		o.maxErrorTries = tries
	}
}

// TimeoutDelay sets a fixed pause before retrying an attempt that exceeded the
// deadline. A delay <= 0 retries immediately.
func TimeoutDelay(d time.Duration) Option {
	return func(o *opts) {
		o.timeoutFixed, o.timeoutDelay = d, fixedOrNil(d)
	}
}

// ErrorDelay sets a fixed pause before retrying an attempt that failed with an
// error. A delay <= 0 retries immediately.
func ErrorDelay(d time.Duration) Option {
	return func(o *opts) {
		o.errorFixed, o.errorDelay = d, fixedOrNil(d)
	}
}

// TimeoutBackoff replaces the fixed timeout delay with a schedule. The factory
// is called once per run, so stateful iterators such as [backoff.New] restart
// for every run.
func TimeoutBackoff(newIter func() backoff.Iterator) Option {
	return func(o *opts) {
		o.timeoutFixed, o.timeoutDelay = 0, newIter
	}
}

// ErrorBackoff replaces the fixed error delay with a schedule. See
// [TimeoutBackoff].
func ErrorBackoff(newIter func() backoff.Iterator) Option {
	return func(o *opts) {
		o.errorFixed, o.errorDelay = 0, newIter
	}
}

// LogDebug sets a sink for debug messages describing the progress of each run.
// Defaults to nil, which disables debug logging entirely. See the logsink
// package for adapters to common loggers.
func LogDebug(sink func(string)) Option {
	return func(o *opts) {
		o.logFn = sink
	}
}

// OnTimeoutExhausted sets the [Recovery] invoked by [Outcome.Result] when the
// run ran out of timeout retries. Defaults to propagating the *TimeoutError.
func OnTimeoutExhausted(r Recovery) Option {
	return func(o *opts) {
		o.onTimeout = r
	}
}

// OnErrorExhausted sets the [Recovery] invoked by [Outcome.Result] when the
// run ran out of error retries. Defaults to propagating the *ExecutionError.
func OnErrorExhausted(r Recovery) Option {
	return func(o *opts) {
		o.onError = r
	}
}

// Each allows you to set a function to be called directly after each failed
// attempt. It is passed a [Status] value that you can use for logging or
// reporting. Defaults to nil, which will take no action.
func Each(eachFn func(Status)) Option {
	return func(o *opts) {
		o.eachFn = eachFn
	}
}

// Observe registers an [Observer]. Multiple observers may be registered; they
// are called in order, after any [Each] function.
func Observe(obs Observer) Option {
	return func(o *opts) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func fixedOrNil(d time.Duration) func() backoff.Iterator {
	if d <= 0 {
		return nil
	}
	return func() backoff.Iterator { return backoff.Fixed(d) }
}

func applyDefaults(o *opts) {
	if o.deadline <= 0 {
		o.deadline = DefaultDeadline
	}
	if o.maxTimeoutTries < 1 {
		o.maxTimeoutTries = DefaultMaxTries
	}
	if o.maxErrorTries < 1 {
		o.maxErrorTries = DefaultMaxTries
	}
	if o.timeoutFixed < 0 {
		o.timeoutFixed = 0
	}
	if o.errorFixed < 0 {
		o.errorFixed = 0
	}
	if o.onTimeout == nil {
		o.onTimeout = Propagate
	}
	if o.onError == nil {
		o.onError = Propagate
	}
}

type opts struct {
	deadline        time.Duration
	maxTimeoutTries int
	maxErrorTries   int
	timeoutFixed    time.Duration
	errorFixed      time.Duration
	timeoutDelay    func() backoff.Iterator
	errorDelay      func() backoff.Iterator
	logFn           func(string)
	onTimeout       Recovery
	onError         Recovery
	eachFn          func(Status)
	observers       []Observer
}
