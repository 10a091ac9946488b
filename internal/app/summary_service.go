package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
)

// SummarySource provides the aggregates of a summary report.
type SummarySource interface {
	SummaryForPeriod(ctx context.Context, since time.Time) (int, []detection.SpeciesSummary, error)
	HourlyBreakdown(ctx context.Context, since time.Time) (map[int]int, error)
	DailyBreakdown(ctx context.Context, since time.Time) (map[string]int, error)
	detection.ImageLookup
}

// JobRecorder remembers successful job deliveries.
type JobRecorder interface {
	RecordSent(job string, at time.Time) error
}

// SummaryService builds and sends the named summary reports.
type SummaryService struct {
	source     SummarySource
	dispatcher alert.Dispatcher
	state      JobRecorder
	metrics    *metrics.NotifierMetrics
	logger     *logrus.Entry
	now        func() time.Time

	mu   sync.RWMutex
	jobs []config.SummaryJob
}

func NewSummaryService(
	source SummarySource,
	dispatcher alert.Dispatcher,
	state JobRecorder,
	jobs []config.SummaryJob,
	m *metrics.NotifierMetrics,
	logger *logrus.Entry,
	now func() time.Time,
) *SummaryService {
	if now == nil {
		now = time.Now
	}
	return &SummaryService{
		source:     source,
		dispatcher: dispatcher,
		state:      state,
		jobs:       jobs,
		metrics:    m,
		logger:     logger,
		now:        now,
	}
}

// UpdateJobs replaces the known job definitions, e.g. after a configuration reload.
func (s *SummaryService) UpdateJobs(jobs []config.SummaryJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobs
}

func (s *SummaryService) job(name string) (config.SummaryJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Name == name {
			return j, true
		}
	}
	return config.SummaryJob{}, false
}

// RunJob generates and sends the named summary, whether or not it is enabled.
// On success the delivery time is recorded.
func (s *SummaryService) RunJob(ctx context.Context, name string) error {
	job, ok := s.job(name)
	if !ok {
		return errs.Config(nil, "summary not found: %s", name)
	}

	log := s.logger.WithFields(logrus.Fields{"job": name, "run_id": uuid.NewString()})
	log.WithField("lookback_minutes", job.LookbackMinutes).Info("Generating summary")

	summary, err := s.Build(ctx, job)
	if err != nil {
		log.WithError(err).Error("Failed to build summary")
		s.metrics.RecordJobRun(name, metrics.OutcomeError)
		return err
	}

	if err := s.dispatcher.SendSummary(ctx, summary); err != nil {
		log.WithError(err).Error("Failed to send summary")
		s.metrics.RecordAlert(string(alert.KindSummary), metrics.OutcomeFailed)
		s.metrics.RecordJobRun(name, metrics.OutcomeError)
		return errs.Dispatch(err, "summary %s", name)
	}

	s.metrics.RecordAlert(string(alert.KindSummary), metrics.OutcomeSent)
	s.metrics.RecordJobRun(name, metrics.OutcomeSuccess)
	log.WithFields(logrus.Fields{
		"detections": summary.TotalDetections,
		"species":    len(summary.Species),
	}).Info("Summary sent")

	if err := s.state.RecordSent(name, summary.GeneratedAt); err != nil {
		log.WithError(err).Warn("Summary sent but state was not saved")
	}
	return nil
}

// Build collects the report data of job over its lookback window.
func (s *SummaryService) Build(ctx context.Context, job config.SummaryJob) (*alert.Summary, error) {
	now := s.now()
	since := now.Add(-time.Duration(job.LookbackMinutes) * time.Minute)

	total, species, err := s.source.SummaryForPeriod(ctx, since)
	if err != nil {
		return nil, err
	}

	// Only the species that make it into the report need an image.
	top := max(0, min(job.IncludeTopSpecies, len(species)))
	for i := range species[:top] {
		url, err := s.source.CachedImageURL(ctx, species[i].ScientificName)
		if err != nil {
			s.logger.WithError(err).WithField("species", species[i].CommonName).Warn("Could not look up species image")
			continue
		}
		species[i].ImageURL = url
	}

	summary := &alert.Summary{
		Name:            job.Name,
		TotalDetections: total,
		Species:         species,
		TopN:            job.IncludeTopSpecies,
		LookbackMinutes: job.LookbackMinutes,
		GeneratedAt:     now,
		WebhookURL:      job.WebhookURL,
	}

	if job.IncludeHourlyBreakdown {
		if summary.Hourly, err = s.source.HourlyBreakdown(ctx, since); err != nil {
			return nil, err
		}
	}
	if job.IncludeDailyBreakdown {
		if summary.Daily, err = s.source.DailyBreakdown(ctx, since); err != nil {
			return nil, err
		}
	}
	return summary, nil
}
