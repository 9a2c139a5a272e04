package notify

import (
	"context"
	"errors"
)

// ErrMessageNotFound means the channel message is already gone (deleted by
// hand or by Telegram). Cleanup treats it as success.
var ErrMessageNotFound = errors.New("channel message not found")

// Action is an inline button attached to a channel post. Token comes back
// verbatim in the callback query.
type Action struct {
	Label string
	Token string
}

// ChannelTransport posts to and deletes from the announcement channel. The
// bot package implements it over the Telegram API; tests use fakes.
type ChannelTransport interface {
	PostToChannel(ctx context.Context, text string, actions []Action) (messageID int, err error)
	DeleteFromChannel(ctx context.Context, messageID int) error
}
