// Package metrics exposes Prometheus instruments for journey sync and teardown.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "journeys"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors recorded by the sync service.
type Metrics struct {
	Syncs        *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	Deletes      *prometheus.CounterVec
	CleanupSteps *prometheus.CounterVec
	RunCallbacks *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syncs_total",
				Help:      "Journey syncs by trigger type, mode and outcome.",
			},
			[]string{"trigger_type", "mode", "outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Time spent compiling and registering a journey.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"trigger_type"},
		),
		Deletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletes_total",
				Help:      "Journey teardowns by outcome.",
			},
			[]string{"outcome"},
		),
		CleanupSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_steps_total",
				Help:      "Teardown steps by step and status.",
			},
			[]string{"step", "status"},
		),
		RunCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_callbacks_total",
				Help:      "Workflow task callbacks by task type and outcome.",
			},
			[]string{"task_type", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Syncs, m.SyncDuration, m.Deletes, m.CleanupSteps, m.RunCallbacks)
	}

	return m
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}

	return OutcomeSuccess
}
