// internal/infra/telegram/commands.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/HurleySk/robo-birder/internal/app"
	"github.com/HurleySk/robo-birder/internal/errs"
)

const pollTimeout = 10 * time.Second

// Operator is the set of operator actions exposed as bot commands.
type Operator interface {
	SendTestAlert(ctx context.Context) error
	RunSummary(ctx context.Context, name string) error
	ProcessLatest(ctx context.Context) (bool, error)
}

// NewCommandBot creates a long-polling bot for the operator commands.
func NewCommandBot(token string, baseLogger *logrus.Entry) (*telebot.Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, c telebot.Context) { // Global error handler
			log := baseLogger.WithError(err)
			if c != nil && c.Chat() != nil {
				log = log.WithField("chat_id", c.Chat().ID)
			}
			log.Error("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram command bot")
	}
	return b, nil
}

// RegisterCommands registers the operator commands. Only the configured chat
// may use them.
func RegisterCommands(ctx context.Context, b *telebot.Bot, op Operator, chatID int64, baseLogger *logrus.Entry) {
	h := &commandHandler{ctx: ctx, op: op, chatID: chatID, logger: baseLogger.WithField("handler_group", "operator")}

	b.Handle("/start", h.wrap("/start", h.help))
	b.Handle("/help", h.wrap("/help", h.help))
	b.Handle("/test", h.wrap("/test", h.test))
	b.Handle("/summary", h.wrap("/summary", h.summary))
	b.Handle("/latest", h.wrap("/latest", h.latest))
}

type commandHandler struct {
	ctx    context.Context
	op     Operator
	chatID int64
	logger *logrus.Entry
}

type command func(log *logrus.Entry, args []string) string

func (h *commandHandler) wrap(name string, run command) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		return c.Send(h.dispatch(name, chat.ID, c.Args(), run))
	}
}

func (h *commandHandler) dispatch(name string, chatID int64, args []string, run command) string {
	log := h.logger.WithFields(logrus.Fields{
		"handler": name,
		"chat_id": chatID,
	})
	log.Info("Command received")

	if chatID != h.chatID {
		log.Warn("Unauthorized access attempt")
		return "You are not allowed to use this bot."
	}
	return run(log, args)
}

func (h *commandHandler) help(_ *logrus.Entry, _ []string) string {
	var help strings.Builder
	help.WriteString("Robo-Birder commands:\n\n")
	help.WriteString("/test - send a test alert to every sink\n")
	help.WriteString("/summary <name> - send the named summary now\n")
	help.WriteString("/latest - process the latest detection\n")
	help.WriteString("/help - show this message")
	return help.String()
}

func (h *commandHandler) test(log *logrus.Entry, _ []string) string {
	if err := h.op.SendTestAlert(h.ctx); err != nil {
		log.WithError(err).Error("Test alert failed")
		return fmt.Sprintf("Test alert failed: %s", err.Error())
	}
	return "Test alert sent."
}

func (h *commandHandler) summary(log *logrus.Entry, args []string) string {
	if len(args) != 1 {
		return "Usage: /summary <name>"
	}
	name := args[0]
	log = log.WithField("job", name)

	if err := h.op.RunSummary(h.ctx, name); err != nil {
		if errors.Is(err, errs.ErrConfig) {
			log.WithError(err).Warn("Unknown summary requested")
			return fmt.Sprintf("Unknown summary %q.", name)
		}
		log.WithError(err).Error("Summary failed")
		return fmt.Sprintf("Summary %q failed: %s", name, err.Error())
	}
	return fmt.Sprintf("Summary %q sent.", name)
}

func (h *commandHandler) latest(log *logrus.Entry, _ []string) string {
	sent, err := h.op.ProcessLatest(h.ctx)
	switch {
	case errors.Is(err, app.ErrNoDetections):
		return "No detections yet."
	case err != nil:
		log.WithError(err).Error("Processing the latest detection failed")
		return fmt.Sprintf("Processing failed: %s", err.Error())
	case !sent:
		return "The latest detection is not eligible for an alert."
	}
	return "Alert sent for the latest detection."
}
