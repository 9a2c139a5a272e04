package db

import (
	"context"
	"time"
)

// AdminAction is a row of the admin audit trail.
type AdminAction struct {
	ID        int64
	AdminID   int64
	Action    string
	Details   string
	CreatedAt time.Time
}

// NotificationsEnabled reports whether scheduled channel posts are switched on.
func (db *DB) NotificationsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := db.QueryRowContext(ctx,
		`SELECT notifications_enabled FROM bot_settings WHERE id = 1`,
	).Scan(&enabled)
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// SetNotificationsEnabled flips the global posting switch.
func (db *DB) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	_, err := db.ExecContext(ctx,
		`UPDATE bot_settings SET notifications_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		val,
	)
	return err
}

// LogAdminAction appends a row to the audit trail. Failures here must not
// break the action being logged, so callers log the error and move on.
func (db *DB) LogAdminAction(ctx context.Context, adminID int64, action, details string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO admin_actions (admin_id, action, details) VALUES (?, ?, ?)`,
		adminID, action, details,
	)
	return err
}

// RecentAdminActions returns up to limit audit rows, newest first.
func (db *DB) RecentAdminActions(ctx context.Context, limit int) ([]AdminAction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, admin_id, action, details, created_at
		FROM admin_actions
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminAction
	for rows.Next() {
		var a AdminAction
		if err := rows.Scan(&a.ID, &a.AdminID, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
