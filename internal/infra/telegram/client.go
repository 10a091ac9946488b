// internal/infra/telegram/client.go
package telegram

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/telebot.v3"
)

// Client sends messages to a Telegram chat.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
	SendPhoto(chatID int64, photoURL, caption string, options *telebot.SendOptions) error
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

// NewTelebotAdapter creates a send-only bot. The bot never polls for updates,
// so it does not interfere with other consumers of the same token.
func NewTelebotAdapter(token string) (*TelebotAdapter, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	return &TelebotAdapter{bot: b}, nil
}

// SendMessage sends a text message to the specified chat.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text, options)
	return err
}

// SendPhoto sends the image at photoURL with a caption.
func (tba *TelebotAdapter) SendPhoto(chatID int64, photoURL, caption string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	photo := &telebot.Photo{File: telebot.FromURL(photoURL), Caption: caption}
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, photo, options)
	return err
}
