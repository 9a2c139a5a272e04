package db

import (
	"context"
	"fmt"

	"shala/internal/model"
)

// SaveChannelMessage records a posted channel message so it can be cleaned up
// later. Called only after the post succeeded.
func (db *DB) SaveChannelMessage(ctx context.Context, m *model.ChannelMessage) error {
	if !m.Slot.Valid() {
		return fmt.Errorf("save channel message: bad slot %q", m.Slot)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO channel_messages (message_id, lesson_date, slot, text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id, lesson_date, slot) DO NOTHING`,
		m.MessageID, m.LessonDate, string(m.Slot), m.Text,
	)
	return err
}

// HasChannelMessage reports whether a post is already tracked for (date, slot).
func (db *DB) HasChannelMessage(ctx context.Context, date string, slot model.SlotKind) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM channel_messages
		WHERE lesson_date = ? AND slot = ?`,
		date, string(slot),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ChannelMessages returns tracked posts for (date, slot).
func (db *DB) ChannelMessages(ctx context.Context, date string, slot model.SlotKind) ([]model.ChannelMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, lesson_date, slot, text, created_at
		FROM channel_messages
		WHERE lesson_date = ? AND slot = ?
		ORDER BY created_at`,
		date, string(slot),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChannelMessage
	for rows.Next() {
		var m model.ChannelMessage
		var slot string
		if err := rows.Scan(&m.MessageID, &m.LessonDate, &slot, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Slot = model.SlotKind(slot)
		out = append(out, m)
	}
	return out, rows.Err()
}

// StaleChannelMessages returns all tracked posts for lessons dated strictly
// before the cutoff date.
func (db *DB) StaleChannelMessages(ctx context.Context, before string) ([]model.ChannelMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, lesson_date, slot, text, created_at
		FROM channel_messages
		WHERE lesson_date < ?
		ORDER BY lesson_date, created_at`,
		before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChannelMessage
	for rows.Next() {
		var m model.ChannelMessage
		var slot string
		if err := rows.Scan(&m.MessageID, &m.LessonDate, &slot, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Slot = model.SlotKind(slot)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChannelMessage drops a tracker row after the channel message has been
// removed (or confirmed gone).
func (db *DB) DeleteChannelMessage(ctx context.Context, messageID int) error {
	_, err := db.ExecContext(ctx, `DELETE FROM channel_messages WHERE message_id = ?`, messageID)
	return err
}
