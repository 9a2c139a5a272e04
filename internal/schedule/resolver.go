package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shala/internal/db"
	"shala/internal/model"
)

// ErrNoSchedule means the weekly template has no entry for the requested
// weekday and slot. The template is seeded at startup, so hitting this is a
// data problem that must surface, not be papered over.
var ErrNoSchedule = errors.New("schedule has no entry for this day")

type scheduleStore interface {
	TemplateLesson(ctx context.Context, weekday time.Weekday, slot model.SlotKind) (string, error)
	TemplateWeek(ctx context.Context) (map[time.Weekday]map[model.SlotKind]string, error)
	OverrideFor(ctx context.Context, date string) (*model.Override, error)
}

// Resolver answers "what happens on this date": the weekly template merged
// with any per-date overrides.
type Resolver struct {
	store scheduleStore
	cache *Cache
	log   zerolog.Logger
}

func NewResolver(store scheduleStore, cache *Cache, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, log: log}
}

// ResolveDay returns the effective lessons for a date. Override wins per
// slot; slots without an override fall back to the weekly template.
func (r *Resolver) ResolveDay(ctx context.Context, date string) (*model.ResolvedDay, error) {
	var cached model.ResolvedDay
	if r.cache.read(ctx, date, &cached) {
		return &cached, nil
	}

	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("resolve day: bad date %q: %w", date, err)
	}
	weekday := t.Weekday()

	override, err := r.store.OverrideFor(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("resolve day %s: %w", date, err)
	}

	day := &model.ResolvedDay{Date: date}
	day.Morning, err = r.resolveSlot(ctx, weekday, model.SlotMorning, override)
	if err != nil {
		return nil, err
	}
	day.Evening, err = r.resolveSlot(ctx, weekday, model.SlotEvening, override)
	if err != nil {
		return nil, err
	}

	r.cache.write(ctx, date, day)
	return day, nil
}

func (r *Resolver) resolveSlot(ctx context.Context, weekday time.Weekday, slot model.SlotKind, override *model.Override) (string, error) {
	if override != nil {
		if v := override.SlotValue(slot); v != nil {
			return *v, nil
		}
	}
	desc, err := r.store.TemplateLesson(ctx, weekday, slot)
	if errors.Is(err, db.ErrNoTemplate) {
		r.log.Error().
			Str("weekday", weekday.String()).
			Str("slot", string(slot)).
			Msg("weekly template is missing an entry")
		return "", fmt.Errorf("%w: %s %s", ErrNoSchedule, weekday, slot)
	}
	if err != nil {
		return "", err
	}
	return desc, nil
}

// RenderWeek formats the weekly template for the admin view, Monday first.
func RenderWeek(week map[time.Weekday]map[model.SlotKind]string) string {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	var b strings.Builder
	b.WriteString("📅 Расписание на неделю:\n")
	for _, wd := range order {
		slots, ok := week[wd]
		if !ok {
			continue
		}
		b.WriteString("\n" + WeekdayName(wd) + ":\n")
		if v, ok := slots[model.SlotMorning]; ok {
			b.WriteString(fmt.Sprintf("  Утро: %s\n", v))
		}
		if v, ok := slots[model.SlotEvening]; ok {
			b.WriteString(fmt.Sprintf("  Вечер: %s\n", v))
		}
	}
	return b.String()
}
