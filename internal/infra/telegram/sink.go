package telegram

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
)

// Sink delivers alerts to a single Telegram chat.
type Sink struct {
	client Client
	chatID int64
	logger *logrus.Entry
}

var _ alert.Sink = (*Sink)(nil)

func NewSink(client Client, chatID int64, logger *logrus.Entry) *Sink {
	return &Sink{client: client, chatID: chatID, logger: logger}
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) SendNewSpecies(_ context.Context, a *alert.NewSpecies) error {
	title, body := alert.NewSpeciesText(a)
	return s.send(title, body, a.ImageURL)
}

func (s *Sink) SendDetection(_ context.Context, a *alert.Sighting) error {
	title, body := alert.SightingText(a)
	return s.send(title, body, a.ImageURL)
}

func (s *Sink) SendSummary(_ context.Context, sum *alert.Summary) error {
	title, body := alert.SummaryText(sum)
	return s.send(title, body, "")
}

func (s *Sink) SendTest(context.Context) error {
	title, body := alert.TestText()
	return s.send(title, body, "")
}

func (s *Sink) send(title, body, imageURL string) error {
	text := "*" + escapeMarkdown(title) + "*\n" + escapeMarkdown(body)
	opts := &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}

	var err error
	if imageURL != "" {
		err = s.client.SendPhoto(s.chatID, imageURL, text, opts)
	} else {
		err = s.client.SendMessage(s.chatID, text, opts)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to send telegram message to chat %d", s.chatID)
	}

	s.logger.WithField("title", title).Debug("Telegram message sent")
	return nil
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
