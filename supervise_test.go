package supervise_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andy.dev/supervise"
)

var errBoom = errors.New("boom")

// sleeper ignores cancellation, like a task that cannot be interrupted.
func sleeper(d time.Duration, calls *atomic.Int32) supervise.Task[string] {
	return supervise.Func(func() (string, error) {
		calls.Add(1)
		time.Sleep(d)
		return "late", nil
	})
}

func failing(calls *atomic.Int32) supervise.Task[string] {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return "", errBoom
	}
}

func TestTimeoutExhausted(t *testing.T) {
	var calls atomic.Int32
	e := supervise.New[string](
		supervise.Deadline(20*time.Millisecond),
		supervise.MaxTimeoutTries(3),
	)
	out, err := e.Run(context.Background(), sleeper(200*time.Millisecond, &calls))
	require.NoError(t, err)

	assert.Equal(t, supervise.StateTimedOut, out.State())
	assert.Equal(t, 3, out.Attempts())
	assert.EqualValues(t, 3, calls.Load())

	_, err = out.Result()
	require.Error(t, err)
	assert.True(t, supervise.TimedOut(err))
	assert.ErrorIs(t, err, supervise.ErrDeadline)

	var te *supervise.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Tries)
	assert.Equal(t, 20*time.Millisecond, te.Deadline)
}

func TestImmediateSuccess(t *testing.T) {
	e := supervise.New[string]()
	out, err := e.Run(context.Background(), supervise.Func(func() (string, error) {
		return "ok", nil
	}))
	require.NoError(t, err)

	val, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, out.Attempts())
	assert.Equal(t, supervise.StateSuccess, out.State())
	assert.NoError(t, out.Err())
}

func TestErrorFallback(t *testing.T) {
	var calls atomic.Int32
	out, err := supervise.Run(context.Background(), failing(&calls), supervise.MaxErrorTries(2))
	require.NoError(t, err)

	val, err := out.ResultOrOnError("fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", val)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, supervise.StateFailed, out.State())
}

func TestSucceedsAfterError(t *testing.T) {
	var calls atomic.Int32
	task := func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		if n == 1 {
			return "", errBoom
		}
		return fmt.Sprintf("attempt %d", n), nil
	}
	out, err := supervise.Run(context.Background(), task, supervise.MaxErrorTries(3))
	require.NoError(t, err)

	val, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, "attempt 2", val)
	assert.Equal(t, 2, out.Attempts())
	assert.EqualValues(t, 2, calls.Load())
}

func TestErrorTriesExact(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			var calls atomic.Int32
			out, err := supervise.Run(context.Background(), failing(&calls), supervise.MaxErrorTries(k))
			require.NoError(t, err)
			assert.EqualValues(t, k, calls.Load())

			_, err = out.Result()
			assert.True(t, supervise.Failed(err))
			assert.ErrorIs(t, err, errBoom)

			var ee *supervise.ExecutionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, k, ee.Tries)
		})
	}
}

func TestSuccessWithinTimeoutBudget(t *testing.T) {
	var calls atomic.Int32
	task := func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		if n < 3 {
			<-ctx.Done()
			return 0, context.Cause(ctx)
		}
		return int(n), nil
	}
	out, err := supervise.Run(context.Background(), task,
		supervise.Deadline(10*time.Millisecond),
		supervise.MaxTimeoutTries(3),
	)
	require.NoError(t, err)
	val, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, 3, val)
	assert.Equal(t, 3, out.Attempts())
}

func TestBudgetsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	task := func(ctx context.Context) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "", errBoom
		case 2:
			<-ctx.Done()
			return "", ctx.Err()
		default:
			return "done", nil
		}
	}
	out, err := supervise.Run(context.Background(), task,
		supervise.Deadline(10*time.Millisecond),
		supervise.MaxTimeoutTries(2),
		supervise.MaxErrorTries(2),
	)
	require.NoError(t, err)
	val, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, "done", val)
	assert.Equal(t, 3, out.Attempts())
}

func TestFirstErrorExhaustsDefaultBudget(t *testing.T) {
	var calls atomic.Int32
	out, err := supervise.Run(context.Background(), failing(&calls), supervise.MaxTimeoutTries(5))
	require.NoError(t, err)
	assert.Equal(t, supervise.StateFailed, out.State())
	assert.EqualValues(t, 1, calls.Load())
	assert.False(t, supervise.TimedOut(out.Err()))
}

func TestErrorDelay(t *testing.T) {
	const delay = 30 * time.Millisecond
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	task := func(context.Context) (string, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return "", errBoom
	}
	_, err := supervise.Run(context.Background(), task,
		supervise.MaxErrorTries(3),
		supervise.ErrorDelay(delay),
	)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), delay)
	}
}

func TestTimeoutDelay(t *testing.T) {
	const delay = 30 * time.Millisecond
	var calls atomic.Int32
	start := time.Now()
	_, err := supervise.Run(context.Background(), sleeper(100*time.Millisecond, &calls),
		supervise.Deadline(5*time.Millisecond),
		supervise.MaxTimeoutTries(2),
		supervise.TimeoutDelay(delay),
	)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay+10*time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInterruptedDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	task := func(tctx context.Context) (string, error) {
		calls.Add(1)
		<-tctx.Done()
		return "", tctx.Err()
	}
	time.AfterFunc(10*time.Millisecond, cancel)

	out, err := supervise.Run(ctx, task,
		supervise.MaxErrorTries(5),
		supervise.MaxTimeoutTries(5),
	)
	require.Error(t, err)
	assert.True(t, supervise.Interrupted(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load(), "interruption must not be retried")

	require.NotNil(t, out)
	assert.Equal(t, supervise.StateInterrupted, out.State())
	_, rerr := out.ResultOr("default")
	assert.Same(t, err, rerr)
	_, rerr = out.ResultHandling(
		func(error) string { return "e" },
		func(error) string { return "t" },
	)
	assert.True(t, supervise.Interrupted(rerr))
}

func TestInterruptedDuringDelay(t *testing.T) {
	cause := errors.New("shutting down")
	ctx, cancel := context.WithCancelCause(context.Background())
	var calls atomic.Int32
	time.AfterFunc(20*time.Millisecond, func() { cancel(cause) })

	start := time.Now()
	out, err := supervise.Run(ctx, failing(&calls),
		supervise.MaxErrorTries(3),
		supervise.ErrorDelay(time.Hour),
	)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, supervise.Interrupted(err))
	assert.ErrorIs(t, err, cause)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, supervise.StateInterrupted, out.State())
}

func TestAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := supervise.Run(ctx, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	}, supervise.MaxErrorTries(3))
	assert.True(t, supervise.Interrupted(err))
	assert.Equal(t, 1, out.Attempts())
}

func TestAbandonedWorkerIsCancelled(t *testing.T) {
	causes := make(chan error, 1)
	task := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		causes <- context.Cause(ctx)
		return "", ctx.Err()
	}
	out, err := supervise.Run(context.Background(), task, supervise.Deadline(5*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, supervise.StateTimedOut, out.State())

	select {
	case c := <-causes:
		assert.ErrorIs(t, c, supervise.ErrDeadline)
	case <-time.After(time.Second):
		t.Fatal("worker was never cancelled")
	}
}

func TestPanicIsTaskError(t *testing.T) {
	out, err := supervise.Run(context.Background(), supervise.Func(func() (int, error) {
		panic("kaboom")
	}), supervise.MaxErrorTries(2))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts())

	_, err = out.Result()
	var pe *supervise.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestRecovery(t *testing.T) {
	var seen error
	out, err := supervise.Run(context.Background(), failing(new(atomic.Int32)),
		supervise.OnErrorExhausted(func(err error) error {
			seen = err
			return nil
		}),
	)
	require.NoError(t, err)
	val, err := out.Result()
	require.NoError(t, err)
	assert.Empty(t, val)
	assert.True(t, supervise.Failed(seen))
}

func TestTimeoutRecoveryWraps(t *testing.T) {
	errStale := errors.New("stale")
	out, err := supervise.Run(context.Background(), sleeper(50*time.Millisecond, new(atomic.Int32)),
		supervise.Deadline(time.Millisecond),
		supervise.OnTimeoutExhausted(func(err error) error {
			return fmt.Errorf("%w: %w", errStale, err)
		}),
	)
	require.NoError(t, err)
	_, err = out.Result()
	assert.ErrorIs(t, err, errStale)
	assert.True(t, supervise.TimedOut(err))
}

func TestResolutionIsIdempotent(t *testing.T) {
	out, err := supervise.Run(context.Background(), failing(new(atomic.Int32)))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := out.Result()
		assert.True(t, supervise.Failed(err))

		val, err := out.ResultOr("x")
		require.NoError(t, err)
		assert.Equal(t, "x", val)

		_, err = out.ResultOrOnTimeout("t")
		assert.True(t, supervise.Failed(err), "only timeouts are defaulted")

		val, err = out.ResultHandling(func(err error) string { return err.Error() }, nil)
		require.NoError(t, err)
		assert.Contains(t, val, "boom")
	}
}

func TestResultHandlingFallsBack(t *testing.T) {
	out, err := supervise.Run(context.Background(), sleeper(50*time.Millisecond, new(atomic.Int32)),
		supervise.Deadline(time.Millisecond))
	require.NoError(t, err)

	_, err = out.ResultHandling(func(error) string { return "unused" }, nil)
	assert.True(t, supervise.TimedOut(err))

	val, err := out.ResultOrOnTimeout("t")
	require.NoError(t, err)
	assert.Equal(t, "t", val)
}

func TestEngineReuse(t *testing.T) {
	var calls atomic.Int32
	e := supervise.New[string](supervise.MaxErrorTries(2))

	first, err := e.Run(context.Background(), failing(&calls))
	require.NoError(t, err)
	assert.Same(t, first, e.Last())

	second, err := e.Run(context.Background(), failing(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempts(), "counters reset between runs")
	assert.EqualValues(t, 4, calls.Load())
	assert.Same(t, second, e.Last())
	assert.Equal(t, supervise.StateFailed, first.State())
	assert.NotEqual(t, first.Report().RunID, second.Report().RunID)

	third, err := e.Run(context.Background(), supervise.Func(func() (string, error) { return "ok", nil }))
	require.NoError(t, err)
	val, _ := third.Result()
	assert.Equal(t, "ok", val)
	_, err = first.Result()
	assert.True(t, supervise.Failed(err), "earlier outcomes are unaffected")
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, supervise.DefaultPolicy(), supervise.New[int]().Policy())
	assert.Equal(t, 4*time.Hour, supervise.DefaultPolicy().Deadline)

	got := supervise.New[int](
		supervise.Deadline(-time.Second),
		supervise.MaxTimeoutTries(0),
		supervise.MaxErrorTries(-3),
		supervise.TimeoutDelay(-time.Second),
	).Policy()
	assert.Equal(t, supervise.DefaultPolicy(), got)
}

func TestWithPolicy(t *testing.T) {
	p := supervise.Policy{
		Deadline:        time.Second,
		MaxTimeoutTries: 2,
		MaxErrorTries:   3,
		TimeoutDelay:    time.Millisecond,
		ErrorDelay:      2 * time.Millisecond,
	}
	assert.Equal(t, p, supervise.New[int](supervise.WithPolicy(p)).Policy())
}

func TestEach(t *testing.T) {
	var statuses []supervise.Status
	_, err := supervise.Run(context.Background(), failing(new(atomic.Int32)),
		supervise.MaxErrorTries(3),
		supervise.Each(func(s supervise.Status) { statuses = append(statuses, s) }),
	)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for i, s := range statuses {
		assert.Equal(t, i+1, s.TryNumber)
		assert.Equal(t, i+1, s.Tries)
		assert.Equal(t, 3, s.MaxTries)
		assert.Equal(t, supervise.KindError, s.Kind)
		assert.ErrorIs(t, s.Err, errBoom)
		assert.Equal(t, i == 2, s.Final)
	}
	assert.Equal(t, statuses[0].RunID, statuses[2].RunID)
}

func TestGetStatus(t *testing.T) {
	var tries []int
	task := func(ctx context.Context) (int, error) {
		s := supervise.GetStatus(ctx)
		tries = append(tries, s.TryNumber)
		if s.TryNumber < 2 {
			return 0, errBoom
		}
		return s.TryNumber, nil
	}
	out, err := supervise.Run(context.Background(), task, supervise.MaxErrorTries(2))
	require.NoError(t, err)
	val, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, val)
	assert.Equal(t, []int{1, 2}, tries)
	assert.Equal(t, supervise.Status{}, supervise.GetStatus(context.Background()))
}

func TestLogDebug(t *testing.T) {
	var lines []string
	_, err := supervise.Run(context.Background(), failing(new(atomic.Int32)),
		supervise.MaxErrorTries(2),
		supervise.LogDebug(func(s string) { lines = append(lines, s) }),
	)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "Starting managed parallel single thread"))
	assert.Contains(t, lines, "\tRunning 2 of 2 on error retrying")
	assert.Equal(t, "Ending process WITH execution final error", lines[len(lines)-1])
}

type recorder struct {
	attempts []supervise.Status
	runs     []supervise.Report
}

func (r *recorder) ObserveAttempt(s supervise.Status) { r.attempts = append(r.attempts, s) }
func (r *recorder) ObserveRun(rep supervise.Report) { r.runs = append(r.runs, rep) }

func TestObserver(t *testing.T) {
	rec := &recorder{}
	out, err := supervise.Run(context.Background(), failing(new(atomic.Int32)),
		supervise.MaxErrorTries(2),
		supervise.Observe(rec),
		supervise.Observe(nil),
	)
	require.NoError(t, err)
	assert.Len(t, rec.attempts, 2)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, out.Report(), rec.runs[0])
	assert.Equal(t, supervise.StateFailed, rec.runs[0].State)
	assert.Equal(t, 2, rec.runs[0].Attempts)
}

func TestNilTaskPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = supervise.New[int]().Run(context.Background(), nil)
	})
}
