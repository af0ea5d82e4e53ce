package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncreaseRequestsTotalMetric(t *testing.T) {
	counter := requestsTotalMetric.WithLabelValues(OutcomeFailure, "retry_exhausted")
	before := testutil.ToFloat64(counter)

	IncreaseRequestsTotalMetric(OutcomeFailure, "retry_exhausted")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(requestsInFlightMetric)

	done := TrackInFlight()
	assert.Equal(t, before+1, testutil.ToFloat64(requestsInFlightMetric))
	done()
	assert.Equal(t, before, testutil.ToFloat64(requestsInFlightMetric))
}

func TestIncreaseRemoteAttemptsMetric(t *testing.T) {
	counter := remoteAttemptsMetric.WithLabelValues(OutcomeFailure, "retryable")
	beforeAttempts := testutil.ToFloat64(counter)
	beforeBackoff := testutil.ToFloat64(remoteBackoffMetric)

	IncreaseRemoteAttemptsMetric(OutcomeFailure, "retryable", 2*time.Second)
	IncreaseRemoteAttemptsMetric(OutcomeFailure, "retryable", 4*time.Second)

	assert.Equal(t, beforeAttempts+2, testutil.ToFloat64(counter))
	assert.Equal(t, beforeBackoff+6, testutil.ToFloat64(remoteBackoffMetric))
}

func TestAddCleanupFailures(t *testing.T) {
	before := testutil.ToFloat64(cleanupFailuresMetric)

	AddCleanupFailures(0)
	AddCleanupFailures(2)

	assert.Equal(t, before+2, testutil.ToFloat64(cleanupFailuresMetric))
}

func TestObserveStageDuration(t *testing.T) {
	before := testutil.CollectAndCount(stageDurationMetric)

	ObserveStageDuration("test_stage_unique", 150*time.Millisecond, true)

	assert.Equal(t, before+1, testutil.CollectAndCount(stageDurationMetric))
}

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMiddleware("test")
	m.MustRegister(reg)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("200", http.MethodGet, "/health")))
}

func TestHandler_ExposesPipelineMetrics(t *testing.T) {
	IncreaseRequestsTotalMetric(OutcomeSuccess, "")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cv_generator_requests_total"))
}
