package notify

import (
	"fmt"
	"strings"
	"time"

	"shala/internal/model"
)

// Callback tokens carried by channel post buttons, e.g.
// "signup_morning_2026-09-01". The format is part of the persisted posts, so
// changing it orphans buttons on messages already in the channel.
const (
	TokenSignup = "signup"
	TokenCancel = "cancel"
)

func SignupToken(slot model.SlotKind, date string) string {
	return fmt.Sprintf("%s_%s_%s", TokenSignup, slot, date)
}

func CancelToken(slot model.SlotKind, date string) string {
	return fmt.Sprintf("%s_%s_%s", TokenCancel, slot, date)
}

// ParseAttendanceToken decodes a button token. ok is false for anything that
// is not a well-formed attendance token.
func ParseAttendanceToken(token string) (kind string, slot model.SlotKind, date string, ok bool) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	kind = parts[0]
	if kind != TokenSignup && kind != TokenCancel {
		return "", "", "", false
	}
	slot = model.SlotKind(parts[1])
	if slot != model.SlotMorning && slot != model.SlotEvening {
		return "", "", "", false
	}
	date = parts[2]
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", "", "", false
	}
	return kind, slot, date, true
}
