// Package metrics exports the progress of supervised runs as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"andy.dev/supervise"
)

const namespace = "supervise"

// Collector implements supervise.Observer. Register it with
// supervise.Observe; one Collector may be shared by any number of engines.
type Collector struct {
	failures *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics with reg. Metric names
// are "supervise_<subsystem>_..." when subsystem is set.
func New(reg prometheus.Registerer, subsystem string) (*Collector, error) {
	c := &Collector{
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempt_failures_total",
				Help:      "Total number of failed attempts, by failure kind.",
			},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of finished runs, by terminal state.",
			},
			[]string{"state"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of finished runs including retry delays, in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"state"},
		),
	}
	for _, col := range []prometheus.Collector{c.failures, c.runs, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	// Pre-initialize label combinations so they appear before the first run.
	for _, k := range []supervise.Kind{supervise.KindTimeout, supervise.KindError} {
		c.failures.WithLabelValues(k.String())
	}
	for _, s := range []supervise.State{
		supervise.StateSuccess, supervise.StateTimedOut, supervise.StateFailed, supervise.StateInterrupted,
	} {
		c.runs.WithLabelValues(s.String())
	}
	return c, nil
}

// ObserveAttempt implements supervise.Observer.
func (c *Collector) ObserveAttempt(s supervise.Status) {
	c.failures.WithLabelValues(s.Kind.String()).Inc()
}

// ObserveRun implements supervise.Observer.
func (c *Collector) ObserveRun(r supervise.Report) {
	state := r.State.String()
	c.runs.WithLabelValues(state).Inc()
	c.duration.WithLabelValues(state).Observe(r.Duration.Seconds())
}
