package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"shala/internal/audit"
	"shala/internal/metrics"
	"shala/internal/model"
	"shala/internal/schedule"
)

var adminPanel = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Расписание", "adm:week"),
		tgbotapi.NewInlineKeyboardButtonData("✏️ Изменить", "adm:edit"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("👥 Записи сегодня", "adm:regs:today"),
		tgbotapi.NewInlineKeyboardButtonData("👥 Записи завтра", "adm:regs:tomorrow"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔔 Вкл/выкл уведомления", "adm:toggle"),
		tgbotapi.NewInlineKeyboardButtonData("📖 Журнал", "adm:audit"),
	),
)

func (b *Bot) sendAdminPanel(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Панель администратора:")
	msg.ReplyMarkup = adminPanel
	_, _ = b.tg.Send(msg)
}

func (b *Bot) sendWeeklySchedule(ctx context.Context, chatID int64) {
	week, err := b.db.TemplateWeek(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("load weekly template")
		b.reply(chatID, "Не удалось загрузить расписание")
		return
	}
	b.reply(chatID, schedule.RenderWeek(week))
}

var editDays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func (b *Bot) sendEditDayMenu(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(editDays))
	for _, wd := range editDays {
		data := fmt.Sprintf("adm:day:%d", int(wd))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(schedule.WeekdayName(wd), data),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "Какой день изменить?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleEditDayCallback(chatID int64, data string) {
	n, err := strconv.Atoi(strings.TrimPrefix(data, "adm:day:"))
	if err != nil || n < 0 || n > 6 {
		return
	}
	wd := time.Weekday(n)
	msg := tgbotapi.NewMessage(chatID, schedule.WeekdayName(wd)+" — какое занятие?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌅 Утро", fmt.Sprintf("adm:slot:%d:%s", n, model.SlotMorning)),
			tgbotapi.NewInlineKeyboardButtonData("🌆 Вечер", fmt.Sprintf("adm:slot:%d:%s", n, model.SlotEvening)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Отдых утром", fmt.Sprintf("adm:del:%d:%s", n, model.SlotMorning)),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Отдых вечером", fmt.Sprintf("adm:del:%d:%s", n, model.SlotEvening)),
		),
	)
	_, _ = b.tg.Send(msg)
}

func parseDaySlot(s string) (time.Weekday, model.SlotKind, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 || n > 6 {
		return 0, "", false
	}
	slot := model.SlotKind(parts[1])
	if slot != model.SlotMorning && slot != model.SlotEvening {
		return 0, "", false
	}
	return time.Weekday(n), slot, true
}

func (b *Bot) handleEditSlotCallback(chatID, userID int64, data string) {
	wd, slot, ok := parseDaySlot(strings.TrimPrefix(data, "adm:slot:"))
	if !ok {
		return
	}

	b.state.set(userID, stepAwaitingText, editTarget{Weekday: wd, Slot: slot})
	b.reply(chatID, "Пришлите новое описание занятия одним сообщением.\n"+
		"Напишите «Отдых», если занятия не будет. /cancel — отменить.")
}

// handleDeleteSlotCallback clears a template cell to the rest marker in one
// step. No text is awaited and the edit flow is untouched.
func (b *Bot) handleDeleteSlotCallback(ctx context.Context, chatID, userID int64, data string) {
	wd, slot, ok := parseDaySlot(strings.TrimPrefix(data, "adm:del:"))
	if !ok {
		return
	}

	if err := b.db.UpsertTemplateLesson(ctx, wd, slot, schedule.RestMarker); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("clear template lesson")
		b.reply(chatID, "Не удалось обновить расписание")
		return
	}
	if err := b.cache.Flush(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("flush schedule cache after template edit")
	}
	metrics.IncAdminEdit("delete")
	b.logAdminAction(ctx, userID, "delete_lesson", fmt.Sprintf("%s %s", wd, slot))
	b.reply(chatID, fmt.Sprintf("Поставлен отдых: %s, %s.",
		schedule.WeekdayName(wd), slotWordRu(slot)))
}

// applyScheduleEdit stores the text an admin sent while in the edit flow.
func (b *Bot) applyScheduleEdit(ctx context.Context, msg *tgbotapi.Message, target editTarget, text string) {
	l := zerolog.Ctx(ctx)
	if text == "" {
		b.reply(msg.Chat.ID, "Пустое описание. Попробуйте ещё раз.")
		return
	}

	if target.Date != "" {
		if err := b.db.UpsertOverride(ctx, target.Date, target.Slot, text); err != nil {
			l.Error().Err(err).Msg("save override")
			b.reply(msg.Chat.ID, "Не удалось сохранить замену")
			return
		}
		b.cache.Invalidate(ctx, target.Date)
		metrics.IncAdminEdit("override")
		b.logAdminAction(ctx, msg.From.ID, "set_override", fmt.Sprintf("%s %s: %s", target.Date, target.Slot, text))
		b.reply(msg.Chat.ID, fmt.Sprintf("Замена на %s сохранена.", target.Date))
		return
	}

	if err := b.db.UpsertTemplateLesson(ctx, target.Weekday, target.Slot, text); err != nil {
		l.Error().Err(err).Msg("save template lesson")
		b.reply(msg.Chat.ID, "Не удалось сохранить расписание")
		return
	}
	if err := b.cache.Flush(ctx); err != nil {
		l.Warn().Err(err).Msg("flush schedule cache after template edit")
	}
	metrics.IncAdminEdit("template")
	b.logAdminAction(ctx, msg.From.ID, "edit_lesson", fmt.Sprintf("%s %s: %s", target.Weekday, target.Slot, text))
	b.reply(msg.Chat.ID, fmt.Sprintf("Расписание обновлено: %s, %s.",
		schedule.WeekdayName(target.Weekday), slotWordRu(target.Slot)))
}

// handleOverrideCommand handles "/override ДАТА утро|вечер ТЕКСТ".
func (b *Bot) handleOverrideCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	parts := strings.SplitN(text, " ", 4)
	if len(parts) < 4 {
		b.reply(msg.Chat.ID, "Формат: /override 2026-09-05 утро Отдых")
		return
	}
	date, slot, desc := parts[1], parseSlotWord(parts[2]), strings.TrimSpace(parts[3])
	if slot == "" || !validDate(date) || desc == "" {
		b.reply(msg.Chat.ID, "Формат: /override 2026-09-05 утро Отдых")
		return
	}

	b.applyScheduleEdit(ctx, msg, editTarget{Date: date, Slot: slot}, desc)
}

// handleOverrideDeleteCommand handles "/override_del ДАТА утро|вечер".
func (b *Bot) handleOverrideDeleteCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		b.reply(msg.Chat.ID, "Формат: /override_del 2026-09-05 утро")
		return
	}
	date, slot := parts[1], parseSlotWord(parts[2])
	if slot == "" || !validDate(date) {
		b.reply(msg.Chat.ID, "Формат: /override_del 2026-09-05 утро")
		return
	}

	if err := b.db.DeleteOverride(ctx, date, slot); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("delete override")
		b.reply(msg.Chat.ID, "Не удалось удалить замену")
		return
	}
	b.cache.Invalidate(ctx, date)
	metrics.IncAdminEdit("override_delete")
	b.logAdminAction(ctx, msg.From.ID, "delete_override", fmt.Sprintf("%s %s", date, slot))
	b.reply(msg.Chat.ID, "Замена удалена, действует обычное расписание.")
}

// handlePostCommand handles "/post утро|вечер|отмена [ДАТА]". Without a date
// it targets the configured announcement offset, same as the scheduled
// triggers.
func (b *Bot) handlePostCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	if b.dispatcher == nil {
		return
	}
	parts := strings.Fields(text)
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Формат: /post утро [2026-09-05]")
		return
	}
	date := model.DateOf(time.Now().In(b.loc).AddDate(0, 0, b.targetOffset))
	if len(parts) >= 3 {
		if !validDate(parts[2]) {
			b.reply(msg.Chat.ID, "Дата в формате 2026-09-05")
			return
		}
		date = parts[2]
	}

	var err error
	switch parseSlotWord(parts[1]) {
	case model.SlotMorning:
		err = b.dispatcher.DispatchSlot(ctx, date, model.SlotMorning)
	case model.SlotEvening:
		err = b.dispatcher.DispatchSlot(ctx, date, model.SlotEvening)
	default:
		if parts[1] != "отмена" {
			b.reply(msg.Chat.ID, "Формат: /post утро|вечер|отмена [ДАТА]")
			return
		}
		err = b.dispatcher.DispatchAbsence(ctx, date)
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("manual post")
		b.reply(msg.Chat.ID, "Не удалось опубликовать пост")
		return
	}
	b.logAdminAction(ctx, msg.From.ID, "manual_post", fmt.Sprintf("%s %s", parts[1], date))
	b.reply(msg.Chat.ID, "Готово.")
}

// handleCleanupCommand handles "/cleanup ДАТА": deletes every tracked post
// for that date.
func (b *Bot) handleCleanupCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	if b.cleaner == nil {
		return
	}
	parts := strings.Fields(text)
	if len(parts) != 2 || !validDate(parts[1]) {
		b.reply(msg.Chat.ID, "Формат: /cleanup 2026-09-05")
		return
	}
	date := parts[1]

	var failed bool
	for _, slot := range []model.SlotKind{model.SlotMorning, model.SlotEvening, model.SlotNoClasses} {
		if err := b.cleaner.Cleanup(ctx, date, slot); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Str("slot", string(slot)).Msg("manual cleanup")
			failed = true
		}
	}
	if failed {
		b.reply(msg.Chat.ID, "Часть постов удалить не удалось, попробуйте позже")
		return
	}
	b.logAdminAction(ctx, msg.From.ID, "manual_cleanup", date)
	b.reply(msg.Chat.ID, "Посты за "+date+" удалены.")
}

func (b *Bot) toggleNotifications(ctx context.Context, chatID, userID int64) {
	l := zerolog.Ctx(ctx)
	enabled, err := b.db.NotificationsEnabled(ctx)
	if err != nil {
		l.Error().Err(err).Msg("read notifications toggle")
		b.reply(chatID, "Не удалось прочитать настройки")
		return
	}
	if err := b.db.SetNotificationsEnabled(ctx, !enabled); err != nil {
		l.Error().Err(err).Msg("flip notifications toggle")
		b.reply(chatID, "Не удалось изменить настройки")
		return
	}
	state := "включены"
	if enabled {
		state = "выключены"
	}
	b.logAdminAction(ctx, userID, "toggle_notifications", state)
	b.reply(chatID, "Уведомления "+state+".")
}

func (b *Bot) sendRegistrations(ctx context.Context, chatID int64, date string) {
	regs, err := b.db.RegistrationsForDate(ctx, date)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("list registrations")
		b.reply(chatID, "Не удалось загрузить записи")
		return
	}
	if len(regs) == 0 {
		b.reply(chatID, "На "+date+" пока никто не записан.")
		return
	}

	counts := map[model.SlotKind]int{}
	for _, slot := range []model.SlotKind{model.SlotMorning, model.SlotEvening} {
		c, err := b.db.RegistrationCount(ctx, date, slot)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("count registrations")
			b.reply(chatID, "Не удалось загрузить записи")
			return
		}
		counts[slot] = c
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Записи на %s:\n", date)
	currentSlot := model.SlotKind("")
	n := 0
	for _, r := range regs {
		if r.Slot != currentSlot {
			currentSlot = r.Slot
			n = 0
			fmt.Fprintf(&sb, "\n%s — %d чел.:\n", slotWordRu(currentSlot), counts[currentSlot])
		}
		n++
		name := r.DisplayName
		if r.Username != "" {
			name += " (@" + r.Username + ")"
		}
		fmt.Fprintf(&sb, "%d. %s\n", n, name)
	}
	b.reply(chatID, sb.String())
}

// handleExportCommand handles "/export [дней]", default 30 days back.
func (b *Bot) handleExportCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	l := zerolog.Ctx(ctx)
	days := 30
	if parts := strings.Fields(text); len(parts) >= 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 || n > 365 {
			b.reply(msg.Chat.ID, "Формат: /export 30")
			return
		}
		days = n
	}

	now := time.Now().In(b.loc)
	from := model.DateOf(now.AddDate(0, 0, -days))
	to := model.DateOf(now)

	regs, err := b.db.RegistrationsBetween(ctx, from, to)
	if err != nil {
		l.Error().Err(err).Msg("load registrations for export")
		b.reply(msg.Chat.ID, "Не удалось выгрузить записи")
		return
	}
	data, err := audit.ExportRegistrations(regs)
	if err != nil {
		l.Error().Err(err).Msg("build registrations export")
		b.reply(msg.Chat.ID, "Не удалось сформировать файл")
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("registrations_%s_%s.xlsx", from, to),
		Bytes: data,
	})
	if _, err := b.tg.Send(doc); err != nil {
		l.Error().Err(err).Msg("send registrations export")
		return
	}
	b.logAdminAction(ctx, msg.From.ID, "export_registrations", fmt.Sprintf("%s..%s", from, to))
}

func (b *Bot) sendAuditLog(ctx context.Context, chatID int64) {
	actions, err := b.db.RecentAdminActions(ctx, 15)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("load audit log")
		b.reply(chatID, "Не удалось загрузить журнал")
		return
	}
	if len(actions) == 0 {
		b.reply(chatID, "Журнал пуст.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Последние действия:\n")
	for _, a := range actions {
		fmt.Fprintf(&sb, "%s — %d: %s %s\n",
			a.CreatedAt.Format("02.01 15:04"), a.AdminID, a.Action, a.Details)
	}
	b.reply(chatID, sb.String())
}

// logAdminAction is best-effort: a broken audit trail must not break the
// admin's action.
func (b *Bot) logAdminAction(ctx context.Context, adminID int64, action, details string) {
	if err := b.db.LogAdminAction(ctx, adminID, action, details); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("write audit log")
	}
}

func parseSlotWord(s string) model.SlotKind {
	switch strings.ToLower(s) {
	case "утро", "morning":
		return model.SlotMorning
	case "вечер", "evening":
		return model.SlotEvening
	}
	return ""
}

func slotWordRu(s model.SlotKind) string {
	if s == model.SlotEvening {
		return "вечер"
	}
	return "утро"
}

func validDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}
