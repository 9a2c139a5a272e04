package schedule

import (
	"strings"
	"time"
)

// RestMarker is the canonical "no class" value, written when an admin clears
// a slot from the edit menu.
const RestMarker = "Отдых"

// Descriptions equal to one of these mean "no class in this slot". Admins
// type them free-form, so matching is case-insensitive.
var restWords = []string{"отдых", "выходной"}

// IsRest reports whether a lesson description is a rest marker.
func IsRest(description string) bool {
	s := strings.ToLower(strings.TrimSpace(description))
	for _, w := range restWords {
		if s == w {
			return true
		}
	}
	return false
}

var ruWeekdays = map[time.Weekday]string{
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
	time.Sunday:    "Воскресенье",
}

// WeekdayName returns the Russian name of a weekday for channel posts and
// admin views.
func WeekdayName(d time.Weekday) string {
	return ruWeekdays[d]
}
