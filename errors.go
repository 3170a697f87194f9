package supervise

import (
	"errors"
	"fmt"
	"time"
)

// ErrDeadline is the cause carried by a [*TimeoutError], and the cancellation
// cause seen by a task whose attempt ran out of time.
var ErrDeadline = errors.New("attempt deadline exceeded")

// ErrAbandoned is the cancellation cause seen by a task whose worker was
// abandoned so that a new attempt could start.
var ErrAbandoned = errors.New("attempt abandoned")

// TimedOut returns true if the error reports a run that exhausted its timeout
// retries.
func TimedOut(e error) bool {
	var te *TimeoutError
	return errors.As(e, &te)
}

// Failed returns true if the error reports a run that exhausted its error
// retries.
func Failed(e error) bool {
	var ee *ExecutionError
	return errors.As(e, &ee)
}

// Interrupted returns true if the supervision itself was cancelled.
func Interrupted(e error) bool {
	var ie *InterruptedError
	return errors.As(e, &ie)
}

// TimeoutError is the final error of a run in which every allowed attempt
// exceeded its deadline.
type TimeoutError struct {
	// Deadline is the per-attempt time budget that was exceeded.
	Deadline time.Duration
	// Tries is the number of attempts that timed out.
	Tries int
	err   error
}

// Error implements the error interface.
func (te *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %d %s of %v: %v", te.Tries, plural(te.Tries), te.Deadline, te.err)
}

// Unwrap allows a *TimeoutError to work with [errors.Is] and [errors.As].
func (te *TimeoutError) Unwrap() error {
	return te.err
}

// ExecutionError is the final error of a run in which every allowed attempt
// failed with an error. It wraps the error of the last attempt.
type ExecutionError struct {
	// Tries is the number of attempts that failed.
	Tries int
	err   error
}

// Error implements the error interface.
func (ee *ExecutionError) Error() string {
	return fmt.Sprintf("failed after %d %s: %v", ee.Tries, plural(ee.Tries), ee.err)
}

// Unwrap allows a *ExecutionError to work with [errors.Is] and [errors.As].
func (ee *ExecutionError) Unwrap() error {
	return ee.err
}

// InterruptedError is returned when the context supervising a run is
// cancelled. It is always fatal: it is never retried, never replaced by a
// default and never passed to a [Recovery].
type InterruptedError struct {
	err error
}

// Error implements the error interface.
func (ie *InterruptedError) Error() string {
	return fmt.Sprintf("supervision interrupted: %v", ie.err)
}

// Unwrap returns the cancellation cause of the supervising context.
func (ie *InterruptedError) Unwrap() error {
	return ie.err
}

// PanicError is reported as the task error when a task panics. It is handled
// like any other task error and is retried according to [MaxErrorTries].
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (pe *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", pe.Value)
}

// Unwrap returns the panic value if it was an error.
func (pe *PanicError) Unwrap() error {
	err, _ := pe.Value.(error)
	return err
}

func errTimeout(deadline time.Duration, tries int) *TimeoutError {
	return &TimeoutError{Deadline: deadline, Tries: tries, err: ErrDeadline}
}

func errExecution(tries int, cause error) *ExecutionError {
	return &ExecutionError{Tries: tries, err: cause}
}

func errInterrupted(cause error) *InterruptedError {
	return &InterruptedError{err: cause}
}

func plural(n int) string {
	if n == 1 {
		return "attempt"
	}
	return "attempts"
}
