package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shala/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestTemplateLessons(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	_, err := database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	assert.ErrorIs(t, err, ErrNoTemplate)

	require.NoError(t, database.UpsertTemplateLesson(ctx, time.Monday, model.SlotMorning, "Майсор класс 10:00-12:00"))
	require.NoError(t, database.UpsertTemplateLesson(ctx, time.Monday, model.SlotEvening, "Майсор класс 19:00-21:00"))

	lesson, err := database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, "Майсор класс 10:00-12:00", lesson)

	// Upsert replaces, not duplicates.
	require.NoError(t, database.UpsertTemplateLesson(ctx, time.Monday, model.SlotMorning, "LED-КЛАСС 9:00"))
	lesson, err = database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, "LED-КЛАСС 9:00", lesson)

	week, err := database.TemplateWeek(ctx)
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Len(t, week[time.Monday], 2)
}

func TestEnsureDefaultTemplate(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	require.NoError(t, database.EnsureDefaultTemplate(ctx))
	want := 0
	for _, slots := range DefaultTemplate {
		want += len(slots)
	}
	count, err := database.CountTemplateLessons(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, count)

	// Second call must not overwrite admin edits.
	require.NoError(t, database.UpsertTemplateLesson(ctx, time.Friday, model.SlotMorning, "изменено"))
	require.NoError(t, database.EnsureDefaultTemplate(ctx))
	lesson, err := database.TemplateLesson(ctx, time.Friday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, "изменено", lesson)
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	ov, err := database.OverrideFor(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Nil(t, ov)

	require.NoError(t, database.UpsertOverride(ctx, "2026-09-01", model.SlotEvening, "Отдых"))
	ov, err = database.OverrideFor(ctx, "2026-09-01")
	require.NoError(t, err)
	require.NotNil(t, ov)
	assert.Nil(t, ov.Morning)
	require.NotNil(t, ov.Evening)
	assert.Equal(t, "Отдых", *ov.Evening)

	require.NoError(t, database.DeleteOverride(ctx, "2026-09-01", model.SlotEvening))
	ov, err = database.OverrideFor(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Nil(t, ov)
}

func TestPurgeOverridesBefore(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	require.NoError(t, database.UpsertOverride(ctx, "2026-08-20", model.SlotMorning, "Отдых"))
	require.NoError(t, database.UpsertOverride(ctx, "2026-09-01", model.SlotMorning, "Отдых"))

	purged, err := database.PurgeOverridesBefore(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	ov, err := database.OverrideFor(ctx, "2026-08-20")
	require.NoError(t, err)
	assert.Nil(t, ov)
	ov, err = database.OverrideFor(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.NotNil(t, ov)
}

func TestRegistrations(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	reg := &model.Registration{
		UserID:      42,
		Username:    "yogi",
		DisplayName: "Анна",
		LessonDate:  "2026-09-01",
		Slot:        model.SlotMorning,
	}

	inserted, err := database.InsertRegistration(ctx, reg)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Duplicate sign-up is a no-op, not an error.
	inserted, err = database.InsertRegistration(ctx, reg)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := database.RegistrationCount(ctx, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	regs, err := database.RegistrationsForDate(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "Анна", regs[0].DisplayName)
	assert.Equal(t, model.SlotMorning, regs[0].Slot)

	removed, err := database.DeleteRegistration(ctx, 42, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = database.DeleteRegistration(ctx, 42, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistrationsBetween(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	for i, date := range []string{"2026-08-30", "2026-08-31", "2026-09-02"} {
		_, err := database.InsertRegistration(ctx, &model.Registration{
			UserID:     int64(100 + i),
			LessonDate: date,
			Slot:       model.SlotEvening,
		})
		require.NoError(t, err)
	}

	regs, err := database.RegistrationsBetween(ctx, "2026-08-31", "2026-09-02")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "2026-08-31", regs[0].LessonDate)
	assert.Equal(t, "2026-09-02", regs[1].LessonDate)
}

func TestChannelMessages(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	has, err := database.HasChannelMessage(ctx, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, database.SaveChannelMessage(ctx, &model.ChannelMessage{
		MessageID:  1001,
		LessonDate: "2026-09-01",
		Slot:       model.SlotMorning,
		Text:       "Майсор класс 10:00-12:00",
	}))

	has, err = database.HasChannelMessage(ctx, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.True(t, has)

	msgs, err := database.ChannelMessages(ctx, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1001, msgs[0].MessageID)

	require.NoError(t, database.DeleteChannelMessage(ctx, 1001))
	has, err = database.HasChannelMessage(ctx, "2026-09-01", model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, has)

	err = database.SaveChannelMessage(ctx, &model.ChannelMessage{
		MessageID:  1002,
		LessonDate: "2026-09-01",
		Slot:       model.SlotKind("night"),
	})
	assert.Error(t, err, "unknown slot kinds must not be tracked")
}

func TestStaleChannelMessages(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	require.NoError(t, database.SaveChannelMessage(ctx, &model.ChannelMessage{
		MessageID: 1, LessonDate: "2026-08-20", Slot: model.SlotMorning,
	}))
	require.NoError(t, database.SaveChannelMessage(ctx, &model.ChannelMessage{
		MessageID: 2, LessonDate: "2026-09-01", Slot: model.SlotMorning,
	}))

	stale, err := database.StaleChannelMessages(ctx, "2026-08-25")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, 1, stale[0].MessageID)
}

func TestNotificationsToggle(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	enabled, err := database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled, "notifications are on by default")

	require.NoError(t, database.SetNotificationsEnabled(ctx, false))
	enabled, err = database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, database.SetNotificationsEnabled(ctx, true))
	enabled, err = database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestAdminActions(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	require.NoError(t, database.LogAdminAction(ctx, 7, "edit_lesson", "monday morning"))
	require.NoError(t, database.LogAdminAction(ctx, 7, "toggle_notifications", "off"))

	actions, err := database.RecentAdminActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "toggle_notifications", actions[0].Action, "newest first")
}
