package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
)

// DetectionSource is the part of the detection database the notification flow reads.
type DetectionSource interface {
	GetByID(ctx context.Context, id int64) (*detection.Detection, error)
	GetLatest(ctx context.Context) (*detection.Detection, error)
	detection.History
	detection.ImageLookup
}

// CooldownStore is the cooldown state the notification flow reads and updates.
type CooldownStore interface {
	CooldownChecker
	Set(species string, now time.Time) error
}

// NotificationService turns a detection into at most one alert: new species
// first, realtime otherwise. The cooldown of a species is only set after its
// alert was delivered.
type NotificationService struct {
	source     DetectionSource
	engine     *EligibilityEngine
	dispatcher alert.Dispatcher
	cooldowns  CooldownStore
	metrics    *metrics.NotifierMetrics
	logger     *logrus.Entry
	now        func() time.Time

	mu    sync.RWMutex
	rules config.Rules
}

func NewNotificationService(
	source DetectionSource,
	dispatcher alert.Dispatcher,
	cooldowns CooldownStore,
	rules config.Rules,
	m *metrics.NotifierMetrics,
	logger *logrus.Entry,
	now func() time.Time,
) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		source:     source,
		engine:     NewEligibilityEngine(cooldowns, now),
		dispatcher: dispatcher,
		cooldowns:  cooldowns,
		metrics:    m,
		logger:     logger,
		now:        now,
		rules:      rules,
	}
}

// UpdateRules swaps the decision rules, e.g. after a configuration reload.
func (s *NotificationService) UpdateRules(rules config.Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

func (s *NotificationService) currentRules() config.Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// HandleDetection decides and dispatches the alert for d and reports whether
// an alert was delivered. Delivery failures carry errs.ErrDispatch.
func (s *NotificationService) HandleDetection(ctx context.Context, d *detection.Detection) (bool, error) {
	rules := s.currentRules()
	log := s.logger.WithFields(logrus.Fields{
		"detection_id": d.ID,
		"species":      d.CommonName,
	})

	decision, err := s.engine.Decide(ctx, d, rules, s.source)
	if err != nil {
		log.WithError(err).Error("Could not evaluate detection")
		s.metrics.RecordDetection(metrics.OutcomeFailed)
		return false, err
	}
	if decision.Kind == NoMatch {
		log.Debug("Detection not eligible for an alert")
		s.metrics.RecordDetection(metrics.OutcomeSkipped)
		return false, nil
	}

	imageURL, err := s.source.CachedImageURL(ctx, d.ScientificName)
	if err != nil {
		log.WithError(err).Warn("Could not look up species image, sending without it")
		imageURL = ""
	}

	var kind alert.Kind
	switch decision.Kind {
	case NewSpeciesMatch:
		kind = alert.KindNewSpecies
		log.WithField("reason", decision.Reason).Info("New species detected")
		err = s.dispatcher.SendNewSpecies(ctx, &alert.NewSpecies{
			Detection:  d,
			Reason:     decision.Reason,
			ImageURL:   imageURL,
			WebhookURL: rules.NewSpecies.WebhookURL,
		})
	default:
		kind = alert.KindDetection
		log.Info("Detection alert")
		err = s.dispatcher.SendDetection(ctx, &alert.Sighting{Detection: d, ImageURL: imageURL})
	}

	if err != nil {
		log.WithError(err).Error("Alert was not delivered")
		s.metrics.RecordAlert(string(kind), metrics.OutcomeFailed)
		s.metrics.RecordDetection(metrics.OutcomeFailed)
		return false, errs.Dispatch(err, "%s alert for detection %d", kind, d.ID)
	}

	s.metrics.RecordAlert(string(kind), metrics.OutcomeSent)
	s.metrics.RecordDetection(metrics.OutcomeSent)
	if err := s.cooldowns.Set(d.ScientificName, s.now()); err != nil {
		log.WithError(err).Warn("Alert sent but cooldown was not saved")
	}
	return true, nil
}
