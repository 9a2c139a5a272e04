package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"shala/internal/metrics"
	"shala/internal/model"
)

type cleanupStore interface {
	ChannelMessages(ctx context.Context, date string, slot model.SlotKind) ([]model.ChannelMessage, error)
	StaleChannelMessages(ctx context.Context, before string) ([]model.ChannelMessage, error)
	DeleteChannelMessage(ctx context.Context, messageID int) error
}

// Cleaner removes outdated channel posts and their tracker rows.
type Cleaner struct {
	store     cleanupStore
	transport ChannelTransport
	log       zerolog.Logger
}

func NewCleaner(store cleanupStore, transport ChannelTransport, log zerolog.Logger) *Cleaner {
	return &Cleaner{store: store, transport: transport, log: log}
}

// Cleanup deletes the tracked posts for (date, slot). Running it when
// nothing is tracked is a no-op, so triggers can fire it blindly.
func (c *Cleaner) Cleanup(ctx context.Context, date string, slot model.SlotKind) error {
	msgs, err := c.store.ChannelMessages(ctx, date, slot)
	if err != nil {
		return fmt.Errorf("list tracked posts for %s %s: %w", date, slot, err)
	}
	return c.deleteAll(ctx, msgs)
}

// Sweep drops every tracker row whose lesson date is older than the cutoff.
// The channel delete is best-effort: past the retention window the row goes
// away whether or not the message could be removed, so storage stays bounded.
func (c *Cleaner) Sweep(ctx context.Context, before string) error {
	msgs, err := c.store.StaleChannelMessages(ctx, before)
	if err != nil {
		return fmt.Errorf("list stale posts before %s: %w", before, err)
	}
	if len(msgs) > 0 {
		c.log.Info().Int("count", len(msgs)).Str("before", before).Msg("sweeping stale channel posts")
	}

	var firstErr error
	for _, m := range msgs {
		switch err := c.transport.DeleteFromChannel(ctx, m.MessageID); {
		case err == nil:
			metrics.IncChannelDelete("deleted")
		case errors.Is(err, ErrMessageNotFound):
			metrics.IncChannelDelete("already_gone")
		default:
			metrics.IncChannelDelete("error")
			c.log.Warn().Err(err).Int("message_id", m.MessageID).Msg("stale post not deleted, dropping tracker row anyway")
		}
		if err := c.store.DeleteChannelMessage(ctx, m.MessageID); err != nil {
			c.log.Error().Err(err).Int("message_id", m.MessageID).Msg("failed to drop tracker row")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// deleteAll removes messages one by one. A message already gone from the
// channel counts as deleted. Other errors keep the tracker row so a later
// run or the retention sweep retries, and do not stop the remaining
// deletions.
func (c *Cleaner) deleteAll(ctx context.Context, msgs []model.ChannelMessage) error {
	var firstErr error
	for _, m := range msgs {
		err := c.transport.DeleteFromChannel(ctx, m.MessageID)
		switch {
		case err == nil:
			metrics.IncChannelDelete("deleted")
		case errors.Is(err, ErrMessageNotFound):
			metrics.IncChannelDelete("already_gone")
			c.log.Debug().Int("message_id", m.MessageID).Msg("channel message already gone")
		default:
			metrics.IncChannelDelete("error")
			c.log.Error().Err(err).Int("message_id", m.MessageID).Msg("failed to delete channel message")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := c.store.DeleteChannelMessage(ctx, m.MessageID); err != nil {
			c.log.Error().Err(err).Int("message_id", m.MessageID).Msg("failed to drop tracker row")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
