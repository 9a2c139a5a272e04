// Package bot wires Telegram updates to schedule, attendance and admin
// operations.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shala/internal/attend"
	"shala/internal/db"
	"shala/internal/model"
	"shala/internal/notify"
	"shala/internal/schedule"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Deps are the collaborators a Bot needs besides the Telegram client.
type Deps struct {
	DB           *db.DB
	Resolver     *schedule.Resolver
	Cache        *schedule.Cache
	Venues       *schedule.VenueTable
	Attendance   *attend.Handler
	Admins       []int64
	ChannelID    int64
	Location     *time.Location
	StateTimeout time.Duration
	// TargetOffsetDays is the offset the scheduled triggers announce, so
	// manual /post commands default to the same date.
	TargetOffsetDays int
	Logger           *zerolog.Logger
}

// Bot handles Telegram updates for the yoga channel.
type Bot struct {
	tg           telegramClient
	db           *db.DB
	resolver     *schedule.Resolver
	cache        *schedule.Cache
	venues       *schedule.VenueTable
	attendance   *attend.Handler
	admins       map[int64]struct{}
	channelID    int64
	loc          *time.Location
	targetOffset int
	state        *stateStore
	logger       *zerolog.Logger

	dispatcher *notify.Dispatcher
	cleaner    *notify.Cleaner
}

func New(token string, debug bool, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, deps)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, deps Deps) (*Bot, error) {
	return newBot(tg, deps)
}

func newBot(tg telegramClient, deps Deps) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	admins := make(map[int64]struct{})
	for _, id := range deps.Admins {
		admins[id] = struct{}{}
	}
	if deps.StateTimeout <= 0 {
		deps.StateTimeout = 30 * time.Minute
	}
	return &Bot{
		tg:           tg,
		db:           deps.DB,
		resolver:     deps.Resolver,
		cache:        deps.Cache,
		venues:       deps.Venues,
		attendance:   deps.Attendance,
		admins:       admins,
		channelID:    deps.ChannelID,
		loc:          deps.Location,
		targetOffset: deps.TargetOffsetDays,
		state:        newStateStore(deps.StateTimeout),
		logger:       deps.Logger,
	}, nil
}

// Transport exposes the channel posting surface for the notify package.
func (b *Bot) Transport() notify.ChannelTransport {
	return &channelTransport{tg: b.tg, channelID: b.channelID}
}

// AttachNotify hands the bot the dispatcher and cleaner so admin commands
// can fire posts and cleanups by hand.
func (b *Bot) AttachNotify(d *notify.Dispatcher, c *notify.Cleaner) {
	b.dispatcher = d
	b.cleaner = c
}

// Start begins polling updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	// Commands interrupt any active edit flow.
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text)
		return
	}

	if b.isAdmin(msg.From.ID) {
		st := b.state.get(msg.From.ID)
		if st.Step == stepAwaitingText {
			b.applyScheduleEdit(ctx, msg, st.Target, text)
			b.state.reset(msg.From.ID)
			return
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	cmd := text
	if i := strings.IndexByte(cmd, ' '); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start", "/help":
		b.state.reset(msg.From.ID)
		b.sendHelp(msg.Chat.ID, msg.From.ID)
		return
	case "/cancel":
		b.state.reset(msg.From.ID)
		b.reply(msg.Chat.ID, "Операция отменена.")
		return
	}

	if !b.isAdmin(msg.From.ID) {
		return
	}

	switch cmd {
	case "/admin":
		b.sendAdminPanel(msg.Chat.ID)
	case "/week":
		b.sendWeeklySchedule(ctx, msg.Chat.ID)
	case "/override":
		b.handleOverrideCommand(ctx, msg, text)
	case "/override_del":
		b.handleOverrideDeleteCommand(ctx, msg, text)
	case "/post":
		b.handlePostCommand(ctx, msg, text)
	case "/cleanup":
		b.handleCleanupCommand(ctx, msg, text)
	case "/toggle":
		b.toggleNotifications(ctx, msg.Chat.ID, msg.From.ID)
	case "/export":
		b.handleExportCommand(ctx, msg, text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil {
		return
	}
	data := cq.Data

	// Attendance buttons live on channel posts and are open to everyone.
	if kind, slot, date, ok := notify.ParseAttendanceToken(data); ok {
		b.handleAttendance(ctx, cq, kind, slot, date)
		return
	}

	_ = b.answerCallback(cq.ID, "")
	if cq.Message == nil || !b.isAdmin(cq.From.ID) {
		return
	}
	chatID := cq.Message.Chat.ID

	switch {
	case data == "adm:week":
		b.sendWeeklySchedule(ctx, chatID)
	case data == "adm:edit":
		b.sendEditDayMenu(chatID)
	case strings.HasPrefix(data, "adm:day:"):
		b.handleEditDayCallback(chatID, data)
	case strings.HasPrefix(data, "adm:slot:"):
		b.handleEditSlotCallback(chatID, cq.From.ID, data)
	case strings.HasPrefix(data, "adm:del:"):
		b.handleDeleteSlotCallback(ctx, chatID, cq.From.ID, data)
	case data == "adm:toggle":
		b.toggleNotifications(ctx, chatID, cq.From.ID)
	case data == "adm:regs:today":
		b.sendRegistrations(ctx, chatID, model.DateOf(time.Now().In(b.loc)))
	case data == "adm:regs:tomorrow":
		b.sendRegistrations(ctx, chatID, model.DateOf(time.Now().In(b.loc).AddDate(0, 0, 1)))
	case data == "adm:audit":
		b.sendAuditLog(ctx, chatID)
	}
}

func (b *Bot) handleAttendance(ctx context.Context, cq *tgbotapi.CallbackQuery, kind string, slot model.SlotKind, date string) {
	l := zerolog.Ctx(ctx)
	var (
		result attend.Result
		err    error
	)
	if kind == notify.TokenSignup {
		result, err = b.attendance.SignUp(ctx, &model.Registration{
			UserID:      cq.From.ID,
			Username:    cq.From.UserName,
			DisplayName: displayName(cq.From),
			LessonDate:  date,
			Slot:        slot,
		})
	} else {
		result, err = b.attendance.Cancel(ctx, cq.From.ID, date, slot)
	}
	if err != nil {
		l.Error().Err(err).Str("data", cq.Data).Msg("attendance update failed")
		_ = b.answerCallback(cq.ID, "Что-то пошло не так, попробуйте ещё раз")
		return
	}
	_ = b.answerCallback(cq.ID, attendanceReply(result))
}

func attendanceReply(r attend.Result) string {
	switch r {
	case attend.Accepted:
		return "Вы записаны! 🙏"
	case attend.AlreadyRegistered:
		return "Вы уже записаны на это занятие"
	case attend.Removed:
		return "Запись отменена"
	case attend.NotRegistered:
		return "Вы не были записаны на это занятие"
	case attend.PastDate:
		return "Это занятие уже прошло"
	}
	return ""
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

func (b *Bot) sendHelp(chatID, userID int64) {
	text := "Привет! Я бот расписания Yoga Shala.\n" +
		"Записывайтесь на занятия кнопками под постами в канале."
	if b.isAdmin(userID) {
		text += "\n\nКоманды администратора:\n" +
			"/admin — панель управления\n" +
			"/week — расписание на неделю\n" +
			"/override ДАТА утро|вечер ТЕКСТ — замена на дату\n" +
			"/override_del ДАТА утро|вечер — убрать замену\n" +
			"/post утро|вечер|отмена [ДАТА] — опубликовать вручную\n" +
			"/cleanup ДАТА — удалить посты за дату\n" +
			"/toggle — вкл/выкл уведомления\n" +
			"/export [дней] — выгрузка записей в Excel"
	}
	b.reply(chatID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

func (b *Bot) answerCallback(id, text string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, text))
	return err
}
