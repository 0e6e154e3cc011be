package timeutil

import "time"

// WeekdayIndex maps a calendar date to the weekday convention used by
// recurring schedules: 0=Sunday through 6=Saturday. Go's time.Weekday
// already counts Sunday as 0, but every weekday comparison in the
// codebase must go through this function so the convention lives in
// exactly one place.
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

// ToLocalAware normalizes an instant to the clinic's configured zone.
func ToLocalAware(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// DayStart returns midnight of the day containing t, in t's location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date,
// compared in a's location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// NextSlotBoundary returns the earliest slot boundary at or after now.
// Boundaries are aligned to the slot duration counted from the top of
// the hour, so with a 30 minute duration they land on :00 and :30.
func NextSlotBoundary(now time.Time, d time.Duration) time.Time {
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	steps := now.Sub(hour) / d
	b := hour.Add(steps * d)
	if b.Before(now) {
		b = b.Add(d)
	}
	return b
}

// AtMinutes anchors a wall-clock offset (minutes since midnight) on the
// given date in the given location.
func AtMinutes(date time.Time, minutes int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, loc)
}
