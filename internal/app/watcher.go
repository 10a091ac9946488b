package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/errs"
	idb "github.com/HurleySk/robo-birder/internal/infra/database"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
)

// WatchSource lists and fetches new detections.
type WatchSource interface {
	MaxID(ctx context.Context) (int64, error)
	ListIDsAfter(ctx context.Context, id int64) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*detection.Detection, error)
}

// DetectionHandler processes one detection and reports whether an alert was sent.
type DetectionHandler interface {
	HandleDetection(ctx context.Context, d *detection.Detection) (bool, error)
}

// DetectionWatcher polls for detections above its watermark. The watermark
// starts at the database's max ID, so rows that existed before startup are
// never replayed, and it advances past every listed ID, including rows that
// could not be fetched.
//
// The watcher is driven by the scheduler loop and is not safe for concurrent use.
type DetectionWatcher struct {
	source  WatchSource
	handler DetectionHandler
	metrics *metrics.NotifierMetrics
	logger  *logrus.Entry

	watermark   int64
	initialized bool
}

func NewDetectionWatcher(source WatchSource, handler DetectionHandler, m *metrics.NotifierMetrics, logger *logrus.Entry) *DetectionWatcher {
	return &DetectionWatcher{source: source, handler: handler, metrics: m, logger: logger}
}

// Initialize sets the watermark to the current max detection ID. On failure the
// watcher stays uninitialized and the next Poll tries again.
func (w *DetectionWatcher) Initialize(ctx context.Context) error {
	maxID, err := w.source.MaxID(ctx)
	if err != nil {
		return err
	}
	w.watermark = maxID
	w.initialized = true
	w.metrics.SetWatermark(maxID)
	w.logger.WithField("watermark", maxID).Info("Detection watcher initialized")
	return nil
}

// Watermark returns the highest detection ID already processed.
func (w *DetectionWatcher) Watermark() int64 {
	return w.watermark
}

// Poll processes every detection above the watermark in ascending ID order and
// returns the number of detections handled (dispatch attempted or not needed).
// A failed listing leaves the watermark unchanged and returns 0.
func (w *DetectionWatcher) Poll(ctx context.Context) int {
	if !w.initialized {
		if err := w.Initialize(ctx); err != nil {
			w.logger.WithError(err).Error("Failed to get max detection id, will retry next poll")
			w.metrics.RecordPollFailure()
		}
		return 0
	}

	ids, err := w.source.ListIDsAfter(ctx, w.watermark)
	if err != nil {
		w.logger.WithError(err).WithField("watermark", w.watermark).Error("Failed to check for new detections")
		w.metrics.RecordPollFailure()
		return 0
	}

	processed := 0
	for _, id := range ids {
		if w.process(ctx, id) {
			processed++
		}
		if id > w.watermark {
			w.watermark = id
		}
	}
	if len(ids) > 0 {
		w.metrics.SetWatermark(w.watermark)
	}
	return processed
}

func (w *DetectionWatcher) process(ctx context.Context, id int64) bool {
	log := w.logger.WithField("detection_id", id)

	d, err := w.source.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrDetectionNotFound) {
			log.Warn("Detection disappeared before it could be processed")
			w.metrics.RecordDetection(metrics.OutcomeNotFound)
		} else {
			log.WithError(err).Error("Failed to fetch detection")
			w.metrics.RecordDetection(metrics.OutcomeFailed)
		}
		return false
	}

	log.WithField("species", d.CommonName).Info("New detection")
	if _, err := w.handler.HandleDetection(ctx, d); err != nil {
		// A failed delivery still counts as handled; anything else does not.
		if errors.Is(err, errs.ErrDispatch) {
			return true
		}
		log.WithError(err).Error("Error handling detection")
		return false
	}
	return true
}
