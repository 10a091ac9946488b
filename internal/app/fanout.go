package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/errs"
)

// Fanout delivers every alert to all configured sinks. An alert counts as
// delivered when at least one sink accepted it.
type Fanout struct {
	sinks  []alert.Sink
	logger *logrus.Entry
}

var _ alert.Dispatcher = (*Fanout)(nil)

func NewFanout(logger *logrus.Entry, sinks ...alert.Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (f *Fanout) SendNewSpecies(ctx context.Context, a *alert.NewSpecies) error {
	return f.send(alert.KindNewSpecies, func(s alert.Sink) error { return s.SendNewSpecies(ctx, a) })
}

func (f *Fanout) SendDetection(ctx context.Context, a *alert.Sighting) error {
	return f.send(alert.KindDetection, func(s alert.Sink) error { return s.SendDetection(ctx, a) })
}

func (f *Fanout) SendSummary(ctx context.Context, s *alert.Summary) error {
	return f.send(alert.KindSummary, func(sink alert.Sink) error { return sink.SendSummary(ctx, s) })
}

func (f *Fanout) SendTest(ctx context.Context) error {
	return f.send(alert.KindTest, func(s alert.Sink) error { return s.SendTest(ctx) })
}

func (f *Fanout) send(kind alert.Kind, deliver func(alert.Sink) error) error {
	if len(f.sinks) == 0 {
		return errs.Dispatch(nil, "no alert sink configured for %s alert", kind)
	}

	var combined error
	delivered := 0
	for _, s := range f.sinks {
		if err := deliver(s); err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{"sink": s.Name(), "kind": kind}).Error("Alert delivery failed")
			combined = errors.CombineErrors(combined, errors.Wrapf(err, "%s", s.Name()))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errs.Dispatch(combined, "%s alert not delivered", kind)
	}
	return nil
}
