package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewNotifierMetrics(registry)
	require.NoError(t, err)

	m.RecordDetection(OutcomeSent)
	m.RecordDetection(OutcomeSent)
	m.RecordDetection(OutcomeSkipped)
	m.RecordAlert("new_species", OutcomeSent)
	m.RecordAlert("detection", OutcomeFailed)
	m.RecordPollFailure()
	m.RecordJobRun("daily", OutcomeSuccess)
	m.SetWatermark(1234)
	m.SetScheduledJobs(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DetectionsProcessed.WithLabelValues(OutcomeSent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectionsProcessed.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsTotal.WithLabelValues("new_species", OutcomeSent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsTotal.WithLabelValues("detection", OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("daily", OutcomeSuccess)))
	assert.Equal(t, float64(1234), testutil.ToFloat64(m.Watermark))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ScheduledJobs))

	// Registering twice on the same registry fails.
	_, err = NewNotifierMetrics(registry)
	assert.Error(t, err)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *NotifierMetrics
	assert.NotPanics(t, func() {
		m.RecordDetection(OutcomeSent)
		m.RecordAlert("summary", OutcomeFailed)
		m.RecordPollFailure()
		m.RecordJobRun("daily", OutcomeError)
		m.SetWatermark(1)
		m.SetScheduledJobs(1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	registry, m, err := NewRegistry()
	require.NoError(t, err)
	m.SetWatermark(42)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "robobirder_watermark 42")
	assert.Contains(t, body, "go_goroutines")
}
