package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"shala/internal/model"
)

// ErrNoTemplate is returned when the weekly template has no entry for a
// requested (weekday, slot). A missing entry is a configuration problem,
// never an implicit "no class".
var ErrNoTemplate = errors.New("no template entry for weekday")

// UpsertTemplateLesson creates or replaces one cell of the weekly template.
func (db *DB) UpsertTemplateLesson(ctx context.Context, weekday time.Weekday, slot model.SlotKind, description string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO lessons (day_of_week, slot, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day_of_week, slot) DO UPDATE SET
			description = excluded.description,
			updated_at = excluded.updated_at`,
		int(weekday), string(slot), description, now, now,
	)
	return err
}

// TemplateLesson returns the template text for a (weekday, slot) cell.
func (db *DB) TemplateLesson(ctx context.Context, weekday time.Weekday, slot model.SlotKind) (string, error) {
	var description string
	err := db.QueryRowContext(ctx,
		"SELECT description FROM lessons WHERE day_of_week = ? AND slot = ?",
		int(weekday), string(slot),
	).Scan(&description)
	if err == sql.ErrNoRows {
		return "", ErrNoTemplate
	}
	if err != nil {
		return "", err
	}
	return description, nil
}

// TemplateWeek loads the whole weekly template.
func (db *DB) TemplateWeek(ctx context.Context) (map[time.Weekday]map[model.SlotKind]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT day_of_week, slot, description FROM lessons")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	week := make(map[time.Weekday]map[model.SlotKind]string)
	for rows.Next() {
		var dow int
		var slot, description string
		if err := rows.Scan(&dow, &slot, &description); err != nil {
			return nil, err
		}
		wd := time.Weekday(dow)
		if week[wd] == nil {
			week[wd] = make(map[model.SlotKind]string)
		}
		week[wd][model.SlotKind(slot)] = description
	}
	return week, rows.Err()
}

// CountTemplateLessons returns the number of template cells.
func (db *DB) CountTemplateLessons(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lessons").Scan(&count)
	return count, err
}

// UpsertOverride creates or replaces a per-date override for one slot.
func (db *DB) UpsertOverride(ctx context.Context, date string, slot model.SlotKind, description string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO lesson_overrides (lesson_date, slot, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lesson_date, slot) DO UPDATE SET
			description = excluded.description,
			updated_at = excluded.updated_at`,
		date, string(slot), description, now, now,
	)
	return err
}

// DeleteOverride removes the override for (date, slot). Deleting a missing
// override is not an error.
func (db *DB) DeleteOverride(ctx context.Context, date string, slot model.SlotKind) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM lesson_overrides WHERE lesson_date = ? AND slot = ?",
		date, string(slot),
	)
	return err
}

// OverrideFor returns the override for a date, or nil when none exists.
func (db *DB) OverrideFor(ctx context.Context, date string) (*model.Override, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT slot, description FROM lesson_overrides WHERE lesson_date = ?",
		date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ov *model.Override
	for rows.Next() {
		var slot, description string
		if err := rows.Scan(&slot, &description); err != nil {
			return nil, err
		}
		if ov == nil {
			ov = &model.Override{Date: date}
		}
		d := description
		switch model.SlotKind(slot) {
		case model.SlotMorning:
			ov.Morning = &d
		case model.SlotEvening:
			ov.Evening = &d
		}
	}
	return ov, rows.Err()
}

// PurgeOverridesBefore drops overrides whose date has passed.
func (db *DB) PurgeOverridesBefore(ctx context.Context, date string) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM lesson_overrides WHERE lesson_date < ?", date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DefaultTemplate is the studio's stock weekly schedule, written on first run
// when the lessons table is empty.
var DefaultTemplate = map[time.Weekday]map[model.SlotKind]string{
	time.Monday: {
		model.SlotMorning: "8:00 - 11:30 - Майсор класс",
		model.SlotEvening: "17:00 - 20:00 - Майсор класс",
	},
	time.Tuesday: {
		model.SlotMorning: "8:00 - 11:30 - Майсор класс",
		model.SlotEvening: "Отдых",
	},
	time.Wednesday: {
		model.SlotMorning: "8:00 - 11:30 - Майсор класс",
		model.SlotEvening: "18:30 - 20:00 - Майсор класс",
	},
	time.Thursday: {
		model.SlotMorning: "8:00 - 11:30 - Майсор класс",
		model.SlotEvening: "17:00 - 20:00 - Майсор класс",
	},
	time.Friday: {
		model.SlotMorning: "8:00 - 11:30 - Майсор класс",
		model.SlotEvening: "17:00 - 20:00 - Майсор класс",
	},
	time.Saturday: {
		model.SlotMorning: "Отдых",
		model.SlotEvening: "Отдых",
	},
	time.Sunday: {
		model.SlotMorning: "10:00 - 11:30 LED-КЛАСС",
		model.SlotEvening: "Отдых",
	},
}

// EnsureDefaultTemplate seeds the weekly template when the table is empty.
func (db *DB) EnsureDefaultTemplate(ctx context.Context) error {
	count, err := db.CountTemplateLessons(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for wd, slots := range DefaultTemplate {
		for slot, description := range slots {
			if err := db.UpsertTemplateLesson(ctx, wd, slot, description); err != nil {
				return err
			}
		}
	}
	return nil
}
