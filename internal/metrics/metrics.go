// Package metrics exposes the Prometheus metrics of the CV pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystem = "cv_generator"

	requestsTotal        = "requests_total"
	requestsInFlight     = "requests_in_flight"
	stageDuration        = "stage_duration_seconds"
	remoteAttemptsTotal  = "remote_attempts_total"
	remoteBackoffSeconds = "remote_backoff_seconds_total"
	cleanupFailures      = "cleanup_failures_total"

	// Labels
	outcomeLabel        = "outcome"
	kindLabel           = "kind"
	stageLabel          = "stage"
	classificationLabel = "classification"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var requestsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      requestsTotal,
		Help:      "number of processed CV requests by outcome and error kind",
	},
	[]string{outcomeLabel, kindLabel},
)

var requestsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      requestsInFlight,
		Help:      "number of CV requests currently being processed",
	},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      stageDuration,
		Help:      "time spent in each pipeline stage",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{stageLabel, outcomeLabel},
)

var remoteAttemptsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      remoteAttemptsTotal,
		Help:      "remote model call attempts by outcome and failure classification",
	},
	[]string{outcomeLabel, classificationLabel},
)

var remoteBackoffMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      remoteBackoffSeconds,
		Help:      "total time scheduled for backoff between remote model attempts",
	},
)

var cleanupFailuresMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      cleanupFailures,
		Help:      "temporary artifacts that could not be removed",
	},
)

// IncreaseRequestsTotalMetric counts a finished request. kind is empty on success.
func IncreaseRequestsTotalMetric(outcome, kind string) {
	requestsTotalMetric.With(prometheus.Labels{
		outcomeLabel: outcome,
		kindLabel:    kind,
	}).Inc()
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	requestsInFlightMetric.Inc()
	return requestsInFlightMetric.Dec
}

// ObserveStageDuration records the duration of one pipeline stage
func ObserveStageDuration(stage string, d time.Duration, failed bool) {
	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeFailure
	}
	stageDurationMetric.With(prometheus.Labels{
		stageLabel:   stage,
		outcomeLabel: outcome,
	}).Observe(d.Seconds())
}

// IncreaseRemoteAttemptsMetric counts one remote call attempt. classification is empty on success.
func IncreaseRemoteAttemptsMetric(outcome, classification string, backoff time.Duration) {
	remoteAttemptsMetric.With(prometheus.Labels{
		outcomeLabel:        outcome,
		classificationLabel: classification,
	}).Inc()
	if backoff > 0 {
		remoteBackoffMetric.Add(backoff.Seconds())
	}
}

// AddCleanupFailures counts artifacts left behind by a failed release
func AddCleanupFailures(n int) {
	if n > 0 {
		cleanupFailuresMetric.Add(float64(n))
	}
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(requestsTotalMetric)
	prometheus.MustRegister(requestsInFlightMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(remoteAttemptsMetric)
	prometheus.MustRegister(remoteBackoffMetric)
	prometheus.MustRegister(cleanupFailuresMetric)
}
