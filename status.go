package supervise

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type statusCtxKeyT string

const (
	statusCtxKey statusCtxKeyT = "supervise"
)

// GetStatus can be used to retrieve information about the current attempt
// from within the task being supervised. Err, Kind and NextDelay are unset.
// It will return Status{} if not called in a supervised context.
func GetStatus(ctx context.Context) Status {
	s := ctx.Value(statusCtxKey)
	if s == nil {
		return Status{}
	}
	return s.(Status)
}

// State is the terminal state of a run.
type State uint8

const (
	StatePending State = iota // the run has not reached a terminal state
	StateSuccess
	StateTimedOut
	StateFailed
	StateInterrupted
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	case StateInterrupted:
		return "interrupted"
	default:
		return "pending"
	}
}

// Kind is the kind of a failed attempt.
type Kind uint8

const (
	KindTimeout Kind = iota + 1
	KindError
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	default:
		return "none"
	}
}

// Status represents the state of a run after a failed attempt. It is passed to
// the [Each] function and to every [Observer].
type Status struct {
	RunID uuid.UUID
	// TryNumber is the overall attempt number, starting from 1.
	TryNumber int
	Kind      Kind
	// Tries is the number of attempts that failed with Kind so far, and
	// MaxTries the number allowed.
	Tries    int
	MaxTries int
	Err      error
	// NextDelay is the pause before the next attempt. It is zero when Final
	// is set.
	NextDelay time.Duration
	// Final is set when this failure exhausted the budget for Kind.
	Final bool
}

// String implements fmt.Stringer
func (s Status) String() string {
	if s.Kind == 0 {
		return fmt.Sprintf("attempt %d", s.TryNumber)
	}
	return fmt.Sprintf("attempt %d (%s %d/%d)", s.TryNumber, s.Kind, s.Tries, s.MaxTries)
}

// Format implements fmt.Formatter it supports the %s and %q print verbs. Output
// is flag-dependent:
//
//	%s -  "attempt # (kind #/#)"
//	%+s - "attempt # (kind #/#) - next in <duration>"
//
// The suffix is replaced by " - exhausted" when the failure was final.
func (s Status) Format(state fmt.State, verb rune) {
	switch verb {
	case 's', 'q', 'v':
		str := s.String()
		if state.Flag('+') {
			if s.Final {
				str += " - exhausted"
			} else {
				str = fmt.Sprintf("%s - next in %v", str, shortDelay(s.NextDelay))
			}
		}
		if verb == 'q' {
			str = fmt.Sprintf("%q", str)
		}
		fmt.Fprint(state, str)
	}
}

func shortDelay(d time.Duration) time.Duration {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond)
	case d < time.Minute:
		return d.Round(time.Second)
	default:
		return d.Round(time.Minute)
	}
}

// Report summarises a finished run. It is passed to [Observer.ObserveRun].
type Report struct {
	RunID    uuid.UUID
	State    State
	Attempts int
	Duration time.Duration
	// Err is the exhaustion or interruption error, nil on success.
	Err error
}

// Observer receives progress events from an engine. Calls are made
// synchronously from the goroutine calling [Engine.Run].
type Observer interface {
	// ObserveAttempt is called after each failed attempt.
	ObserveAttempt(Status)
	// ObserveRun is called once when a run reaches a terminal state.
	ObserveRun(Report)
}
