/*
Package supervise runs a single fallible, possibly slow task on a dedicated
goroutine, enforcing a deadline on every attempt and retrying timeouts and
errors according to two independent budgets.

# Usage

	e := supervise.New[string](
		supervise.Deadline(5*time.Second),
		supervise.MaxTimeoutTries(3),
		supervise.MaxErrorTries(6),
	)
	out, err := e.Run(ctx, fetch)
	if err != nil {
		return err // ctx was cancelled
	}
	val, err := out.ResultOrOnTimeout("cached")

# Attempts

Each attempt runs the task on a fresh goroutine. Before an attempt starts, the
goroutine of the previous attempt, if any, is abandoned by cancelling its
context. If the attempt does not finish within the deadline its context is
cancelled with [ErrDeadline] and the attempt counts as a timeout; if the task
returns an error or panics it counts as an error.

Cancellation is a request, not a kill. A task that ignores its context, or
that starts work of its own which does not, keeps running after it has been
given up on and its result is discarded.

# Retry Budgets

Timeouts and errors are counted separately. A run stops as soon as one kind
has failed as many times as allowed by [MaxTimeoutTries] or [MaxErrorTries];
both default to 1, meaning the task is run once. A fixed pause can be applied
before retrying with [TimeoutDelay] and [ErrorDelay], or a schedule from the
backoff package with [TimeoutBackoff] and [ErrorBackoff].

# Outcomes

[Engine.Run] does not fail on exhaustion. It returns an [*Outcome] and the
caller chooses how to resolve it:
  - [Outcome.Result] applies the configured [Recovery] for the kind, which
    defaults to returning the *TimeoutError or *ExecutionError.
  - [Outcome.ResultOr], [Outcome.ResultOrOnTimeout] and
    [Outcome.ResultOrOnError] substitute a default value.
  - [Outcome.ResultHandling] computes the value from the error.

# Interruption

If the context passed to Run is cancelled, whether during an attempt or
during a retry delay, the run stops immediately. Run returns an
[*InterruptedError], and the outcome reports the same error from every method;
interruption is never retried, recovered or replaced by a default.

# Defaults

	| Setting           | Default     |
	|-------------------|-------------|
	| Deadline          | 4h          |
	| MaxTimeoutTries   | 1           |
	| MaxErrorTries     | 1           |
	| TimeoutDelay      | none        |
	| ErrorDelay        | none        |
	| LogDebug          | disabled    |
	| Recovery          | [Propagate] |
*/
package supervise
