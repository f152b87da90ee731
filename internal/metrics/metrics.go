// Package metrics exposes the daemon's Prometheus collectors: process
// lifecycle counters, current-state gauges, and per-process output
// throughput. Registration is idempotent so tests and the daemon can
// both call Register against the default registry without
// coordinating.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process starts.",
		}, []string{"service", "process"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of auto restarts after a non-zero exit.",
		}, []string{"service", "process"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of stops, whether graceful or killed.",
		}, []string{"service", "process"},
	)
	processStartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "start_duration_seconds",
			Help:      "Wall-clock time from spawn to the process reporting running.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "process"},
	)
	runningInstances = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "overseerd",
			Subsystem: "service",
			Name:      "running_processes",
			Help:      "Current running process count per service.",
		}, []string{"service"},
	)

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions, labeled by source and destination state.",
		}, []string{"service", "process", "from", "to"},
	)

	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "current_state",
			Help:      "1 for the process's current state, 0 otherwise.",
		}, []string{"service", "process", "state"},
	)

	outputBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overseerd",
			Subsystem: "output",
			Name:      "bytes_total",
			Help:      "Bytes captured from process stdout/stderr.",
		}, []string{"service", "process"},
	)
)

// Register registers all metrics with r. Safe to call multiple times;
// later calls after a first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		processStarts, processRestarts, processStops, processStartDuration,
		runningInstances, stateTransitions, currentStates, outputBytes,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler serves Prometheus metrics from the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// IncStart, IncRestart, IncStop, ObserveStartDuration, SetRunningInstances,
// RecordStateTransition, SetCurrentState, and AddOutputBytes are no-ops
// until Register succeeds, so callers never need to guard on whether
// metrics are wired up.

func IncStart(service, process string) {
	if regOK.Load() {
		processStarts.WithLabelValues(service, process).Inc()
	}
}

func IncRestart(service, process string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(service, process).Inc()
	}
}

func IncStop(service, process string) {
	if regOK.Load() {
		processStops.WithLabelValues(service, process).Inc()
	}
}

func ObserveStartDuration(service, process string, seconds float64) {
	if regOK.Load() {
		processStartDuration.WithLabelValues(service, process).Observe(seconds)
	}
}

func SetRunningInstances(service string, n int) {
	if regOK.Load() {
		runningInstances.WithLabelValues(service).Set(float64(n))
	}
}

func RecordStateTransition(service, process, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(service, process, from, to).Inc()
	}
}

func SetCurrentState(service, process, state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentStates.WithLabelValues(service, process, state).Set(value)
	}
}

// AddOutputBytes records n bytes of captured stdout/stderr for process.
func AddOutputBytes(service, process string, n int) {
	if regOK.Load() && n > 0 {
		outputBytes.WithLabelValues(service, process).Add(float64(n))
	}
}
