package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	motionStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "motion",
			Name:      "starts_total",
			Help:      "Number of successful motion daemon starts.",
		},
	)
	motionRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "motion",
			Name:      "restarts_total",
			Help:      "Number of health-check driven motion restarts.",
		},
	)
	motionStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "motion",
			Name:      "stops_total",
			Help:      "Number of motion daemon stops (graceful or kill).",
		},
	)
	healthCheckFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "motion",
			Name:      "health_check_failures_total",
			Help:      "Health checks that found motion dead while required.",
		},
	)
	subsystemUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cameye",
			Subsystem: "service",
			Name:      "subsystem_up",
			Help:      "Whether a background subsystem is running (1) or not (0).",
		}, []string{"name"},
	)
	cleanupRemovedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "cleanup",
			Name:      "removed_files_total",
			Help:      "Media files removed by the cleanup sweep.",
		},
	)
	tasksExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cameye",
			Subsystem: "tasks",
			Name:      "executed_total",
			Help:      "Scheduled tasks executed, by outcome.",
		}, []string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		motionStarts, motionRestarts, motionStops, healthCheckFailures,
		subsystemUp, cleanupRemovedFiles, tasksExecuted,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer. The HTTP listener wires it at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncMotionStart() {
	if regOK.Load() {
		motionStarts.Inc()
	}
}
func IncMotionRestart() {
	if regOK.Load() {
		motionRestarts.Inc()
	}
}
func IncMotionStop() {
	if regOK.Load() {
		motionStops.Inc()
	}
}
func IncHealthCheckFailure() {
	if regOK.Load() {
		healthCheckFailures.Inc()
	}
}
func SetSubsystemUp(name string, up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		subsystemUp.WithLabelValues(name).Set(v)
	}
}
func AddCleanupRemoved(n int) {
	if regOK.Load() {
		cleanupRemovedFiles.Add(float64(n))
	}
}
func IncTaskExecuted(outcome string) {
	if regOK.Load() {
		tasksExecuted.WithLabelValues(outcome).Inc()
	}
}
