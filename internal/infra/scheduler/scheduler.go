package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/infra/config"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
)

// JobRunner executes one named job.
type JobRunner interface {
	RunJob(ctx context.Context, name string) error
}

// Poller checks for new detections once.
type Poller interface {
	Poll(ctx context.Context) int
}

// Reloader loads a fresh configuration and hands it to the services that
// depend on it. The scheduler then rebuilds its own job table from it.
type Reloader interface {
	Reload() (*config.AppConfig, error)
}

// NotificationScheduler is the single control loop of the daemon. Every tick it
// applies a pending reload, runs the due jobs, then polls for detections.
// Nothing in a tick runs concurrently and a tick is never interrupted. Work
// started outside the loop goes through Exclusive so it never overlaps a tick.
type NotificationScheduler struct {
	runner   JobRunner
	watcher  Poller
	reloader Reloader
	metrics  *metrics.NotifierMetrics
	logger   *logrus.Entry
	now      func() time.Time

	interval time.Duration
	location *time.Location
	table    *Table

	reloadRequested atomic.Bool
	// mu is held for the whole of a tick and of every Exclusive call.
	mu sync.Mutex
}

func NewNotificationScheduler(
	cfg *config.AppConfig,
	runner JobRunner,
	watcher Poller,
	reloader Reloader,
	m *metrics.NotifierMetrics,
	logger *logrus.Entry,
	now func() time.Time,
) *NotificationScheduler {
	if now == nil {
		now = time.Now
	}
	s := &NotificationScheduler{
		runner:   runner,
		watcher:  watcher,
		reloader: reloader,
		metrics:  m,
		logger:   logger,
		now:      now,
	}
	s.apply(cfg)
	return s
}

// apply takes over the scheduling settings of cfg and rebuilds the job table.
func (s *NotificationScheduler) apply(cfg *config.AppConfig) {
	s.interval = cfg.Scheduler.PollInterval
	if s.interval <= 0 {
		s.interval = config.DefaultPollInterval
	}
	s.location = cfg.Location()
	s.table = BuildTable(cfg.Summaries, s.now().In(s.location), s.logger)
	s.metrics.SetScheduledJobs(s.table.Len())
}

// RequestReload asks for a configuration reload at the start of the next tick.
// It is safe to call from signal handlers and other goroutines.
func (s *NotificationScheduler) RequestReload() {
	s.reloadRequested.Store(true)
}

// Table returns the current job table.
func (s *NotificationScheduler) Table() *Table {
	return s.table
}

// Exclusive runs fn between ticks. It waits for a running tick to finish and
// keeps the next one from starting until fn returns.
func (s *NotificationScheduler) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

// Run ticks until ctx is cancelled. Cancellation takes effect between ticks.
func (s *NotificationScheduler) Run(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"jobs":     s.table.Names(),
	}).Info("Scheduler started")

	// A tick always runs to completion, even when a stop arrives mid-way.
	tickCtx := context.WithoutCancel(ctx)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-timer.C:
		}

		s.Tick(tickCtx)
		timer.Reset(s.interval)
	}
}

// Tick performs one iteration of the loop.
func (s *NotificationScheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reloadRequested.CompareAndSwap(true, false) {
		s.reload()
	}

	now := s.now().In(s.location)
	for _, name := range s.table.Due(now) {
		log := s.logger.WithField("job", name)
		log.Info("Running scheduled job")
		if err := s.runner.RunJob(ctx, name); err != nil {
			log.WithError(err).Error("Scheduled job failed")
		}
		s.table.Reschedule(name, s.now().In(s.location))
	}

	if s.watcher != nil {
		s.watcher.Poll(ctx)
	}
}

func (s *NotificationScheduler) reload() {
	if s.reloader == nil {
		s.logger.Warn("Reload requested but no configuration source is set")
		return
	}
	s.logger.Info("Reloading configuration")
	cfg, err := s.reloader.Reload()
	if err != nil {
		s.logger.WithError(err).Error("Failed to reload configuration, keeping the current one")
		return
	}
	s.apply(cfg)
	s.logger.WithField("jobs", s.table.Names()).Info("Configuration reloaded")
}
