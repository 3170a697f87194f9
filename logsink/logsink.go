// Package logsink adapts common loggers to the debug sink accepted by
// supervise.LogDebug, and provides an observer that logs the progress of runs
// as structured fields.
package logsink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"

	"andy.dev/supervise"
)

// Slog returns a sink writing each message to l at level.
func Slog(l *slog.Logger, level slog.Level) func(string) {
	return func(msg string) {
		l.Log(context.Background(), level, strings.TrimSpace(msg))
	}
}

// Logrus returns a sink writing each message to l at level.
func Logrus(l logrus.FieldLogger, level logrus.Level) func(string) {
	return func(msg string) {
		msg = strings.TrimSpace(msg)
		switch level {
		case logrus.TraceLevel, logrus.DebugLevel:
			l.Debug(msg)
		case logrus.InfoLevel:
			l.Info(msg)
		case logrus.WarnLevel:
			l.Warn(msg)
		default:
			l.Error(msg)
		}
	}
}

// Writer returns a sink writing each message to w on its own line. Write
// errors are ignored.
func Writer(w io.Writer) func(string) {
	return func(msg string) {
		fmt.Fprintln(w, msg)
	}
}

// Observer logs every failed attempt at warn level and every finished run at
// info level, or error level if the run did not succeed.
type Observer struct {
	log logrus.FieldLogger
}

// NewObserver returns an Observer writing to l.
func NewObserver(l logrus.FieldLogger) *Observer {
	return &Observer{log: l}
}

// ObserveAttempt implements supervise.Observer.
func (o *Observer) ObserveAttempt(s supervise.Status) {
	o.log.WithFields(logrus.Fields{
		"run_id":     s.RunID.String(),
		"attempt":    s.TryNumber,
		"kind":       s.Kind.String(),
		"tries":      s.Tries,
		"max_tries":  s.MaxTries,
		"next_delay": s.NextDelay.String(),
		"final":      s.Final,
	}).WithError(s.Err).Warn("attempt failed")
}

// ObserveRun implements supervise.Observer.
func (o *Observer) ObserveRun(r supervise.Report) {
	entry := o.log.WithFields(logrus.Fields{
		"run_id":   r.RunID.String(),
		"state":    r.State.String(),
		"attempts": r.Attempts,
		"duration": r.Duration.String(),
	})
	if r.Err != nil {
		entry.WithError(r.Err).Error("run finished")
		return
	}
	entry.Info("run finished")
}
