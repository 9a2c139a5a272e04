package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shala/internal/notify"
)

// channelTransport adapts the bot's Telegram client to the notify package.
type channelTransport struct {
	tg        telegramClient
	channelID int64
}

func (t *channelTransport) PostToChannel(_ context.Context, text string, actions []notify.Action) (int, error) {
	msg := tgbotapi.NewMessage(t.channelID, text)
	if len(actions) > 0 {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
		for _, a := range actions {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Token))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	sent, err := t.tg.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *channelTransport) DeleteFromChannel(_ context.Context, messageID int) error {
	_, err := t.tg.Request(tgbotapi.NewDeleteMessage(t.channelID, messageID))
	if err != nil && isMessageGone(err) {
		return notify.ErrMessageNotFound
	}
	return err
}

// isMessageGone matches the Telegram API errors for deleting a message that
// no longer exists.
func isMessageGone(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "message to delete not found") ||
		strings.Contains(s, "message can't be deleted")
}
