package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"shala/internal/metrics"
	"shala/internal/model"
	"shala/internal/schedule"
)

type dispatchStore interface {
	NotificationsEnabled(ctx context.Context) (bool, error)
	HasChannelMessage(ctx context.Context, date string, slot model.SlotKind) (bool, error)
	SaveChannelMessage(ctx context.Context, m *model.ChannelMessage) error
}

type dayResolver interface {
	ResolveDay(ctx context.Context, date string) (*model.ResolvedDay, error)
}

// Dispatcher turns schedule triggers into channel posts. One post per
// (date, slot) at most: a tracker row is written only after the post
// succeeds, and an existing row makes the trigger a no-op.
type Dispatcher struct {
	store     dispatchStore
	resolver  dayResolver
	venues    *schedule.VenueTable
	transport ChannelTransport
	limiter   *rate.Limiter
	log       zerolog.Logger
}

func NewDispatcher(store dispatchStore, resolver dayResolver, venues *schedule.VenueTable, transport ChannelTransport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		resolver:  resolver,
		venues:    venues,
		transport: transport,
		// Telegram allows bursts but throttles sustained channel traffic.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		log:     log,
	}
}

// DispatchSlot posts the reminder for one class slot. Posts nothing when the
// slot holds a rest marker: absence notices belong to DispatchAbsence.
func (d *Dispatcher) DispatchSlot(ctx context.Context, date string, slot model.SlotKind) error {
	ok, err := d.shouldPost(ctx, date, slot)
	if err != nil || !ok {
		return err
	}

	day, err := d.resolver.ResolveDay(ctx, date)
	if err != nil {
		return fmt.Errorf("dispatch %s %s: %w", date, slot, err)
	}
	desc := day.Slot(slot)
	if schedule.IsRest(desc) {
		d.log.Debug().Str("date", date).Str("slot", string(slot)).Msg("rest day, slot post skipped")
		return nil
	}

	weekday, err := weekdayOf(date)
	if err != nil {
		return err
	}
	text := renderSlotPost(weekday, date, desc, d.venues.VenueFor(weekday, slot))
	actions := []Action{
		{Label: "✅ Я приду", Token: SignupToken(slot, date)},
		{Label: "❌ Отменить запись", Token: CancelToken(slot, date)},
	}

	return d.post(ctx, date, slot, text, actions)
}

// DispatchAbsence posts a notice covering every slot of the date that holds
// a rest marker. A fully resting day gets one combined notice; a day with
// classes in all slots gets nothing.
func (d *Dispatcher) DispatchAbsence(ctx context.Context, date string) error {
	ok, err := d.shouldPost(ctx, date, model.SlotNoClasses)
	if err != nil || !ok {
		return err
	}

	day, err := d.resolver.ResolveDay(ctx, date)
	if err != nil {
		return fmt.Errorf("dispatch absence %s: %w", date, err)
	}

	morningRest := schedule.IsRest(day.Morning)
	eveningRest := schedule.IsRest(day.Evening)
	if !morningRest && !eveningRest {
		return nil
	}

	weekday, err := weekdayOf(date)
	if err != nil {
		return err
	}
	text := renderAbsencePost(weekday, date, morningRest, eveningRest)

	return d.post(ctx, date, model.SlotNoClasses, text, nil)
}

func (d *Dispatcher) shouldPost(ctx context.Context, date string, slot model.SlotKind) (bool, error) {
	enabled, err := d.store.NotificationsEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("check notifications toggle: %w", err)
	}
	if !enabled {
		d.log.Info().Str("date", date).Str("slot", string(slot)).Msg("notifications disabled, post skipped")
		return false, nil
	}
	exists, err := d.store.HasChannelMessage(ctx, date, slot)
	if err != nil {
		return false, fmt.Errorf("check tracked post for %s %s: %w", date, slot, err)
	}
	if exists {
		d.log.Debug().Str("date", date).Str("slot", string(slot)).Msg("already posted")
		return false, nil
	}
	return true, nil
}

func (d *Dispatcher) post(ctx context.Context, date string, slot model.SlotKind, text string, actions []Action) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	messageID, err := d.transport.PostToChannel(ctx, text, actions)
	if err != nil {
		return fmt.Errorf("post to channel for %s %s: %w", date, slot, err)
	}

	metrics.IncChannelPost(string(slot))

	// Tracker row only after a successful post. If this write fails the
	// message stays untracked and the retention sweep never sees it; log
	// loud so an operator can delete it by hand.
	if err := d.store.SaveChannelMessage(ctx, &model.ChannelMessage{
		MessageID:  messageID,
		LessonDate: date,
		Slot:       slot,
		Text:       text,
	}); err != nil {
		d.log.Error().Err(err).
			Int("message_id", messageID).
			Str("date", date).
			Str("slot", string(slot)).
			Msg("posted but failed to track channel message")
		return fmt.Errorf("track channel message %d: %w", messageID, err)
	}

	d.log.Info().
		Int("message_id", messageID).
		Str("date", date).
		Str("slot", string(slot)).
		Msg("channel post published")
	return nil
}

func weekdayOf(date string) (time.Weekday, error) {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("bad date %q: %w", date, err)
	}
	return t.Weekday(), nil
}

func renderSlotPost(weekday time.Weekday, date, desc, venue string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧘 %s, %s\n\n", schedule.WeekdayName(weekday), date)
	b.WriteString(desc + "\n\n")
	fmt.Fprintf(&b, "📍 Зал: %s\n\n", venue)
	b.WriteString("Отметьтесь, пожалуйста, кнопками ниже 👇")
	return b.String()
}

func renderAbsencePost(weekday time.Weekday, date string, morningRest, eveningRest bool) string {
	name := schedule.WeekdayName(weekday)
	switch {
	case morningRest && eveningRest:
		return fmt.Sprintf("🌴 %s, %s — занятий нет. Отдыхаем!", name, date)
	case morningRest:
		return fmt.Sprintf("🌅 %s, %s — утренней практики не будет.", name, date)
	default:
		return fmt.Sprintf("🌆 %s, %s — вечерней практики не будет.", name, date)
	}
}
