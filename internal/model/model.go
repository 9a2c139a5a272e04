// Package model holds the domain types shared across the bot.
package model

import "time"

// SlotKind identifies a lesson slot within a day. The "no_classes" kind is a
// pseudo-slot used to track absence notices in the channel.
type SlotKind string

const (
	SlotMorning   SlotKind = "morning"
	SlotEvening   SlotKind = "evening"
	SlotNoClasses SlotKind = "no_classes"
)

// Valid reports whether k is one of the known slot kinds.
func (k SlotKind) Valid() bool {
	switch k {
	case SlotMorning, SlotEvening, SlotNoClasses:
		return true
	}
	return false
}

// DateLayout is the canonical date format used in callback tokens and storage.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date string.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// TemplateLesson is one cell of the weekly template.
type TemplateLesson struct {
	Weekday     time.Weekday
	Slot        SlotKind
	Description string
	UpdatedAt   time.Time
}

// Override replaces one or both slots of the template for a single date.
// A nil field falls back to the template.
type Override struct {
	Date    string // YYYY-MM-DD
	Morning *string
	Evening *string
}

// SlotValue returns the overridden description for a slot, or nil when the
// slot is not overridden.
func (o *Override) SlotValue(kind SlotKind) *string {
	if kind == SlotEvening {
		return o.Evening
	}
	return o.Morning
}

// ResolvedDay is the effective schedule for one date after applying overrides.
// Never persisted; recomputed per request.
type ResolvedDay struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Morning string `json:"morning"`
	Evening string `json:"evening"`
}

// Slot returns the text for the given slot kind.
func (d *ResolvedDay) Slot(kind SlotKind) string {
	if kind == SlotEvening {
		return d.Evening
	}
	return d.Morning
}

// ChannelMessage links a posted channel message to the (date, slot kind) it
// announces, so the cleanup job can find and delete it later.
type ChannelMessage struct {
	MessageID  int
	LessonDate string // YYYY-MM-DD
	Slot       SlotKind
	Text       string
	CreatedAt  time.Time
}

// Registration is one attendance row. Unique per (user, date, slot).
type Registration struct {
	ID          int64
	UserID      int64
	Username    string
	DisplayName string
	LessonDate  string // YYYY-MM-DD
	Slot        SlotKind
	CreatedAt   time.Time
}
