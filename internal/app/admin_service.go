package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	idb "github.com/HurleySk/robo-birder/internal/infra/database"
)

// Custom application-level errors for operator actions
var ErrNoDetections = errors.New("no detections found in database")

// JobRunner runs a named summary job.
type JobRunner interface {
	RunJob(ctx context.Context, name string) error
}

// AdminService backs the one-shot operator commands: test alerts, running a
// summary on demand and (re)processing a single detection.
type AdminService struct {
	source     DetectionSource
	handler    DetectionHandler
	jobs       JobRunner
	dispatcher alert.Dispatcher
	logger     *logrus.Entry
}

func NewAdminService(source DetectionSource, handler DetectionHandler, jobs JobRunner, dispatcher alert.Dispatcher, logger *logrus.Entry) *AdminService {
	return &AdminService{
		source:     source,
		handler:    handler,
		jobs:       jobs,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SendTestAlert checks that the configured sinks accept messages.
func (s *AdminService) SendTestAlert(ctx context.Context) error {
	if err := s.dispatcher.SendTest(ctx); err != nil {
		return errors.Wrap(err, "test alert failed")
	}
	s.logger.Info("Test alert sent")
	return nil
}

// RunSummary runs the named summary job immediately.
func (s *AdminService) RunSummary(ctx context.Context, name string) error {
	return s.jobs.RunJob(ctx, name)
}

// ProcessDetection runs detection id through the notification flow.
func (s *AdminService) ProcessDetection(ctx context.Context, id int64) (bool, error) {
	d, err := s.source.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrDetectionNotFound) {
			return false, errors.Wrapf(err, "detection %d", id)
		}
		return false, errors.Wrapf(err, "failed to load detection %d", id)
	}
	return s.handler.HandleDetection(ctx, d)
}

// ProcessLatest runs the most recent detection through the notification flow.
func (s *AdminService) ProcessLatest(ctx context.Context) (bool, error) {
	d, err := s.source.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, idb.ErrDetectionNotFound) {
			return false, ErrNoDetections
		}
		return false, errors.Wrap(err, "failed to load latest detection")
	}
	return s.handler.HandleDetection(ctx, d)
}
