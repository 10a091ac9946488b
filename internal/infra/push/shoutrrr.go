// Package push delivers alerts to generic notification services (ntfy, gotify,
// slack, pushover, ...) through shoutrrr URLs.
package push

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/errs"
)

// Sender is the part of the shoutrrr router the sink uses.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Sink sends the plain-text rendering of every alert to all configured URLs.
type Sink struct {
	sender Sender
	logger *logrus.Entry
}

var _ alert.Sink = (*Sink)(nil)

// NewShoutrrrSink builds a router for urls. Unparseable URLs are a
// configuration error.
func NewShoutrrrSink(urls []string, timeout time.Duration, logger *logrus.Entry) (*Sink, error) {
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// The raw error may echo the URL and its credentials.
		return nil, errs.Config(nil, "invalid push url (%d configured): %s", len(urls), errors.UnwrapAll(err).Error())
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	return NewSink(router, logger), nil
}

func NewSink(sender Sender, logger *logrus.Entry) *Sink {
	return &Sink{sender: sender, logger: logger}
}

func (s *Sink) Name() string { return "push" }

func (s *Sink) SendNewSpecies(_ context.Context, a *alert.NewSpecies) error {
	return s.send(alert.NewSpeciesText(a))
}

func (s *Sink) SendDetection(_ context.Context, a *alert.Sighting) error {
	return s.send(alert.SightingText(a))
}

func (s *Sink) SendSummary(_ context.Context, sum *alert.Summary) error {
	return s.send(alert.SummaryText(sum))
}

func (s *Sink) SendTest(context.Context) error {
	return s.send(alert.TestText())
}

// send reports success when at least one URL accepted the message.
func (s *Sink) send(title, body string) error {
	params := stypes.Params{}
	params.SetTitle(title)

	results := s.sender.Send(body, &params)
	var combined error
	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
			combined = errors.CombineErrors(combined, err)
		}
	}
	if failed > 0 && failed == len(results) {
		return errors.Wrapf(combined, "all %d push services failed", failed)
	}
	if failed > 0 {
		s.logger.WithError(combined).WithField("failed", failed).Warn("Some push services failed")
	}
	return nil
}
