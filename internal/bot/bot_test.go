package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shala/internal/attend"
	"shala/internal/config"
	"shala/internal/db"
	"shala/internal/model"
	"shala/internal/notify"
	"shala/internal/schedule"
)

const (
	adminID = int64(1)
	userID  = int64(500)
)

type mockTelegram struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (m *mockTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	m.nextID++
	return tgbotapi.Message{MessageID: m.nextID}, nil
}

func (m *mockTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *mockTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "shala_test_bot"}
}

func (m *mockTelegram) lastMessageText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	msg, ok := m.sent[len(m.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last sent is not a MessageConfig")
	return msg.Text
}

func newTestBot(t *testing.T) (*Bot, *mockTelegram, *db.DB) {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureDefaultTemplate(context.Background()))

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	venues, err := schedule.NewVenueTable(config.VenueConfig{Default: "Yoga Shala"})
	require.NoError(t, err)

	logger := zerolog.Nop()
	resolver := schedule.NewResolver(database, nil, logger)

	tg := &mockTelegram{}
	b, err := NewWithTelegramClient(tg, Deps{
		DB:               database,
		Resolver:         resolver,
		Cache:            nil,
		Venues:           venues,
		Attendance:       attend.New(database, loc, logger),
		Admins:           []int64{adminID},
		ChannelID:        -100123,
		Location:         loc,
		StateTimeout:     30 * time.Minute,
		TargetOffsetDays: 1,
		Logger:           &logger,
	})
	require.NoError(t, err)
	return b, tg, database
}

func messageFrom(id int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: id, FirstName: "Test"},
		Chat: &tgbotapi.Chat{ID: id},
	}
}

func callbackFrom(id int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cbid",
		Data: data,
		From: &tgbotapi.User{ID: id, FirstName: "Test", UserName: "tester"},
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: id},
		},
	}
}

func futureDate(days int) string {
	return model.DateOf(time.Now().AddDate(0, 0, days))
}

func TestSignupCallback(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()
	date := futureDate(1)

	b.handleCallback(ctx, callbackFrom(userID, fmt.Sprintf("signup_morning_%s", date)))

	// Answered with a confirmation, no chat message sent.
	require.Len(t, tg.requests, 1)
	cb, ok := tg.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "Вы записаны! 🙏", cb.Text)

	count, err := database.RegistrationCount(ctx, date, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Second press: already registered, still one row.
	b.handleCallback(ctx, callbackFrom(userID, fmt.Sprintf("signup_morning_%s", date)))
	cb = tg.requests[1].(tgbotapi.CallbackConfig)
	assert.Equal(t, "Вы уже записаны на это занятие", cb.Text)
	count, err = database.RegistrationCount(ctx, date, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCancelCallback(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()
	date := futureDate(1)

	b.handleCallback(ctx, callbackFrom(userID, fmt.Sprintf("cancel_evening_%s", date)))
	cb := tg.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "Вы не были записаны на это занятие", cb.Text)

	b.handleCallback(ctx, callbackFrom(userID, fmt.Sprintf("signup_evening_%s", date)))
	b.handleCallback(ctx, callbackFrom(userID, fmt.Sprintf("cancel_evening_%s", date)))
	cb = tg.requests[2].(tgbotapi.CallbackConfig)
	assert.Equal(t, "Запись отменена", cb.Text)

	count, err := database.RegistrationCount(ctx, date, model.SlotEvening)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPastDateCallback(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.handleCallback(context.Background(), callbackFrom(userID, "signup_morning_2020-01-01"))
	cb := tg.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "Это занятие уже прошло", cb.Text)
}

func TestAdminEditFlow(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()

	b.handleCallback(ctx, callbackFrom(adminID, "adm:edit"))
	assert.Contains(t, tg.lastMessageText(t), "Какой день")

	b.handleCallback(ctx, callbackFrom(adminID, "adm:day:1"))
	assert.Contains(t, tg.lastMessageText(t), "Понедельник")

	b.handleCallback(ctx, callbackFrom(adminID, "adm:slot:1:morning"))
	assert.Contains(t, tg.lastMessageText(t), "новое описание")

	b.handleMessage(ctx, messageFrom(adminID, "LED-КЛАСС 9:00"))
	assert.Contains(t, tg.lastMessageText(t), "Расписание обновлено")

	lesson, err := database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, "LED-КЛАСС 9:00", lesson)

	// Flow consumed: the next message is not treated as an edit.
	b.handleMessage(ctx, messageFrom(adminID, "просто сообщение"))
	lesson, err = database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, "LED-КЛАСС 9:00", lesson)

	actions, err := database.RecentAdminActions(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	assert.Equal(t, "edit_lesson", actions[0].Action)
}

func TestAdminDeleteSlotCallback(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()

	b.handleCallback(ctx, callbackFrom(adminID, "adm:del:1:morning"))
	assert.Contains(t, tg.lastMessageText(t), "отдых")

	lesson, err := database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, schedule.RestMarker, lesson)
	assert.True(t, schedule.IsRest(lesson))

	// Direct write: no edit flow is left awaiting text.
	b.handleMessage(ctx, messageFrom(adminID, "не расписание"))
	lesson, err = database.TemplateLesson(ctx, time.Monday, model.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, schedule.RestMarker, lesson)

	actions, err := database.RecentAdminActions(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	assert.Equal(t, "delete_lesson", actions[0].Action)
}

func TestAdminEditCancelled(t *testing.T) {
	b, _, database := newTestBot(t)
	ctx := context.Background()

	b.handleCallback(ctx, callbackFrom(adminID, "adm:slot:2:evening"))
	b.handleMessage(ctx, messageFrom(adminID, "/cancel"))
	b.handleMessage(ctx, messageFrom(adminID, "не расписание"))

	lesson, err := database.TemplateLesson(ctx, time.Tuesday, model.SlotEvening)
	require.NoError(t, err)
	assert.NotEqual(t, "не расписание", lesson)
}

func TestOverrideCommands(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()
	date := futureDate(3)

	b.handleMessage(ctx, messageFrom(adminID, fmt.Sprintf("/override %s вечер Отдых", date)))
	assert.Contains(t, tg.lastMessageText(t), "Замена")

	ov, err := database.OverrideFor(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, ov)
	require.NotNil(t, ov.Evening)
	assert.Equal(t, "Отдых", *ov.Evening)

	b.handleMessage(ctx, messageFrom(adminID, fmt.Sprintf("/override_del %s вечер", date)))
	ov, err = database.OverrideFor(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, ov)
}

func TestOverrideCommandBadFormat(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, messageFrom(adminID, "/override завтра утро Отдых"))
	assert.Contains(t, tg.lastMessageText(t), "Формат")

	b.handleMessage(ctx, messageFrom(adminID, "/override 2026-09-05"))
	assert.Contains(t, tg.lastMessageText(t), "Формат")
}

func TestNonAdminIgnored(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, messageFrom(userID, "/admin"))
	b.handleMessage(ctx, messageFrom(userID, "/toggle"))
	assert.Empty(t, tg.sent)

	b.handleCallback(ctx, callbackFrom(userID, "adm:toggle"))
	enabled, err := database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled, "non-admin callback must not flip the toggle")
}

func TestToggleNotifications(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, messageFrom(adminID, "/toggle"))
	assert.Contains(t, tg.lastMessageText(t), "выключены")

	enabled, err := database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	b.handleMessage(ctx, messageFrom(adminID, "/toggle"))
	enabled, err = database.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestWeeklyScheduleView(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.handleMessage(context.Background(), messageFrom(adminID, "/week"))
	text := tg.lastMessageText(t)
	assert.Contains(t, text, "Понедельник")
	assert.Contains(t, text, "Суббота")
}

func TestRegistrationsView(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()
	today := model.DateOf(time.Now().In(b.loc))

	b.handleCallback(ctx, callbackFrom(adminID, "adm:regs:today"))
	assert.Contains(t, tg.lastMessageText(t), "никто не записан")

	_, err := database.InsertRegistration(ctx, &model.Registration{
		UserID: userID, Username: "yogi", DisplayName: "Анна",
		LessonDate: today, Slot: model.SlotMorning,
	})
	require.NoError(t, err)

	b.handleCallback(ctx, callbackFrom(adminID, "adm:regs:today"))
	text := tg.lastMessageText(t)
	assert.Contains(t, text, "Анна")
	assert.Contains(t, text, "@yogi")
	assert.Contains(t, text, "утро — 1 чел.")
}

func TestExportCommand(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()

	_, err := database.InsertRegistration(ctx, &model.Registration{
		UserID: userID, DisplayName: "Анна",
		LessonDate: model.DateOf(time.Now()), Slot: model.SlotMorning,
	})
	require.NoError(t, err)

	b.handleMessage(ctx, messageFrom(adminID, "/export 7"))

	require.NotEmpty(t, tg.sent)
	doc, ok := tg.sent[len(tg.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok, "export must send a document")
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Contains(t, file.Name, "registrations_")
	assert.NotEmpty(t, file.Bytes)
}

func TestManualPostUsesConfiguredOffset(t *testing.T) {
	b, tg, database := newTestBot(t)
	ctx := context.Background()
	target := model.DateOf(time.Now().In(b.loc).AddDate(0, 0, 1))

	// The default template may rest on any given weekday; pin a class on
	// the target date so the post is deterministic.
	require.NoError(t, database.UpsertOverride(ctx, target, model.SlotMorning, "Майсор класс 10:00"))

	logger := zerolog.Nop()
	b.AttachNotify(notify.NewDispatcher(database, b.resolver, b.venues, b.Transport(), logger), nil)

	b.handleMessage(ctx, messageFrom(adminID, "/post утро"))
	assert.Contains(t, tg.lastMessageText(t), "Готово")

	tracked, err := database.HasChannelMessage(ctx, target, model.SlotMorning)
	require.NoError(t, err)
	assert.True(t, tracked, "manual post without a date must target the configured offset")
}

func TestStateStoreExpiry(t *testing.T) {
	s := newStateStore(30 * time.Minute)
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.set(adminID, stepAwaitingText, editTarget{Weekday: time.Monday, Slot: model.SlotMorning})

	st := s.get(adminID)
	assert.Equal(t, stepAwaitingText, st.Step)

	// 31 minutes later the flow is stale.
	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	st = s.get(adminID)
	assert.Equal(t, stepNone, st.Step)
}

func TestParseSlotWord(t *testing.T) {
	assert.Equal(t, model.SlotMorning, parseSlotWord("утро"))
	assert.Equal(t, model.SlotMorning, parseSlotWord("Утро"))
	assert.Equal(t, model.SlotEvening, parseSlotWord("вечер"))
	assert.Equal(t, model.SlotEvening, parseSlotWord("evening"))
	assert.Equal(t, model.SlotKind(""), parseSlotWord("ночь"))
}
