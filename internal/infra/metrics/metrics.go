// Package metrics provides Prometheus metrics for the notifier.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// NotifierMetrics contains the metrics of the decision engine and the scheduler.
// A nil *NotifierMetrics is valid and records nothing.
type NotifierMetrics struct {
	DetectionsProcessed *prometheus.CounterVec // by outcome
	AlertsTotal         *prometheus.CounterVec // by kind, outcome
	PollFailures        prometheus.Counter
	JobRunsTotal        *prometheus.CounterVec // by job, outcome
	Watermark           prometheus.Gauge
	ScheduledJobs       prometheus.Gauge

	registry *prometheus.Registry
}

// NewNotifierMetrics creates the metrics and registers them on registry.
func NewNotifierMetrics(registry *prometheus.Registry) (*NotifierMetrics, error) {
	m := &NotifierMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, errors.Wrap(err, "failed to register notifier metrics")
	}
	return m, nil
}

func (m *NotifierMetrics) initMetrics() {
	m.DetectionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robobirder_detections_processed_total",
			Help: "Detections handled by the watcher, by outcome",
		},
		[]string{"outcome"}, // sent, skipped, failed, not_found
	)

	m.AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robobirder_alerts_total",
			Help: "Alert dispatch attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.PollFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robobirder_poll_failures_total",
		Help: "Detection polls that could not query the database",
	})

	m.JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robobirder_job_runs_total",
			Help: "Summary job executions by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	m.Watermark = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robobirder_watermark",
		Help: "Highest detection ID processed by the watcher",
	})

	m.ScheduledJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robobirder_scheduled_jobs",
		Help: "Jobs currently present in the schedule table",
	})
}

// RecordDetection counts one handled detection.
func (m *NotifierMetrics) RecordDetection(outcome string) {
	if m == nil {
		return
	}
	m.DetectionsProcessed.WithLabelValues(outcome).Inc()
}

// RecordAlert counts one dispatch attempt.
func (m *NotifierMetrics) RecordAlert(kind, outcome string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *NotifierMetrics) RecordPollFailure() {
	if m == nil {
		return
	}
	m.PollFailures.Inc()
}

func (m *NotifierMetrics) RecordJobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, outcome).Inc()
}

func (m *NotifierMetrics) SetWatermark(id int64) {
	if m == nil {
		return
	}
	m.Watermark.Set(float64(id))
}

func (m *NotifierMetrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.ScheduledJobs.Set(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *NotifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionsProcessed.Collect(ch)
	m.AlertsTotal.Collect(ch)
	m.PollFailures.Collect(ch)
	m.JobRunsTotal.Collect(ch)
	m.Watermark.Collect(ch)
	m.ScheduledJobs.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionsProcessed.Describe(ch)
	m.AlertsTotal.Describe(ch)
	m.PollFailures.Describe(ch)
	m.JobRunsTotal.Describe(ch)
	m.Watermark.Describe(ch)
	m.ScheduledJobs.Describe(ch)
}
