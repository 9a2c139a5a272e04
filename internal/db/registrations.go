package db

import (
	"context"
	"database/sql"

	"shala/internal/model"
)

// InsertRegistration adds an attendance row. Returns false without error when
// the user is already registered for the same (date, slot).
func (db *DB) InsertRegistration(ctx context.Context, r *model.Registration) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO registrations (user_id, username, display_name, lesson_date, slot)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, lesson_date, slot) DO NOTHING`,
		r.UserID, r.Username, r.DisplayName, r.LessonDate, string(r.Slot),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteRegistration removes an attendance row. Returns false without error
// when the user was not registered. Hard delete: a later re-signup is
// indistinguishable from a fresh one.
func (db *DB) DeleteRegistration(ctx context.Context, userID int64, date string, slot model.SlotKind) (bool, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM registrations
		WHERE user_id = ? AND lesson_date = ? AND slot = ?`,
		userID, date, string(slot),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RegistrationsForDate returns the day's attendance rows ordered by slot and
// sign-up time.
func (db *DB) RegistrationsForDate(ctx context.Context, date string) ([]model.Registration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, username, display_name, lesson_date, slot, created_at
		FROM registrations
		WHERE lesson_date = ?
		ORDER BY slot, created_at`,
		date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// RegistrationsBetween returns attendance rows for a date range (inclusive),
// ordered by date, slot and sign-up time.
func (db *DB) RegistrationsBetween(ctx context.Context, from, to string) ([]model.Registration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, username, display_name, lesson_date, slot, created_at
		FROM registrations
		WHERE lesson_date >= ? AND lesson_date <= ?
		ORDER BY lesson_date, slot, created_at`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// RegistrationCount returns the number of sign-ups for (date, slot).
func (db *DB) RegistrationCount(ctx context.Context, date string, slot model.SlotKind) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM registrations
		WHERE lesson_date = ? AND slot = ?`,
		date, string(slot),
	).Scan(&count)
	return count, err
}

func scanRegistrations(rows *sql.Rows) ([]model.Registration, error) {
	var out []model.Registration
	for rows.Next() {
		var r model.Registration
		var slot string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Username, &r.DisplayName, &r.LessonDate, &slot, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Slot = model.SlotKind(slot)
		out = append(out, r)
	}
	return out, rows.Err()
}
