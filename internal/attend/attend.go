// Package attend handles class sign-ups and cancellations coming from
// channel post buttons.
package attend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"shala/internal/metrics"
	"shala/internal/model"
)

// Result is the outcome of a sign-up or cancellation attempt. Every outcome
// gets its own user-facing reply.
type Result int

const (
	Accepted Result = iota
	AlreadyRegistered
	Removed
	NotRegistered
	PastDate
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case AlreadyRegistered:
		return "already_registered"
	case Removed:
		return "removed"
	case NotRegistered:
		return "not_registered"
	case PastDate:
		return "past_date"
	}
	return "unknown"
}

// Ledger is the storage surface attendance needs.
type Ledger interface {
	InsertRegistration(ctx context.Context, r *model.Registration) (bool, error)
	DeleteRegistration(ctx context.Context, userID int64, date string, slot model.SlotKind) (bool, error)
}

// Handler validates and records attendance changes.
type Handler struct {
	ledger Ledger
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

func New(ledger Ledger, loc *time.Location, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		loc:    loc,
		now:    time.Now,
		log:    log,
	}
}

// SignUp records a user for (date, slot). Signing up twice is harmless and
// reported as AlreadyRegistered.
func (h *Handler) SignUp(ctx context.Context, reg *model.Registration) (Result, error) {
	if h.isPast(reg.LessonDate) {
		metrics.IncSignup(PastDate.String())
		return PastDate, nil
	}
	inserted, err := h.ledger.InsertRegistration(ctx, reg)
	if err != nil {
		return 0, fmt.Errorf("sign up %d for %s/%s: %w", reg.UserID, reg.LessonDate, reg.Slot, err)
	}
	result := Accepted
	if !inserted {
		result = AlreadyRegistered
	}
	metrics.IncSignup(result.String())
	h.log.Info().
		Int64("user_id", reg.UserID).
		Str("date", reg.LessonDate).
		Str("slot", string(reg.Slot)).
		Str("result", result.String()).
		Msg("sign-up")
	return result, nil
}

// Cancel removes a user's registration for (date, slot). Cancelling when not
// registered is harmless and reported as NotRegistered.
func (h *Handler) Cancel(ctx context.Context, userID int64, date string, slot model.SlotKind) (Result, error) {
	if h.isPast(date) {
		metrics.IncCancellation(PastDate.String())
		return PastDate, nil
	}
	removed, err := h.ledger.DeleteRegistration(ctx, userID, date, slot)
	if err != nil {
		return 0, fmt.Errorf("cancel %d for %s/%s: %w", userID, date, slot, err)
	}
	result := Removed
	if !removed {
		result = NotRegistered
	}
	metrics.IncCancellation(result.String())
	h.log.Info().
		Int64("user_id", userID).
		Str("date", date).
		Str("slot", string(slot)).
		Str("result", result.String()).
		Msg("cancellation")
	return result, nil
}

// isPast compares lesson date to today in the studio timezone. Same-day
// changes are allowed.
func (h *Handler) isPast(date string) bool {
	t, err := time.ParseInLocation(model.DateLayout, date, h.loc)
	if err != nil {
		return true
	}
	today := h.now().In(h.loc)
	startOfToday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, h.loc)
	return t.Before(startOfToday)
}
