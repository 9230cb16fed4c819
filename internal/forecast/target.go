package forecast

import (
	"time"

	"github.com/findmyspot/findmyspot/internal/model"
)

// TargetTime returns the next occurrence of dayType at hour:00 in now's
// location, searching forward from today (offset 0) for the first date whose
// weekday falls in the bucket. An hour already past today still resolves to
// today when today matches.
func TargetTime(now time.Time, hour int, dayType model.DayType) time.Time {
	for offset := 0; offset < 7; offset++ {
		d := now.AddDate(0, 0, offset)
		if dayType.Matches(d.Weekday()) {
			return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
}

// TargetTimeOn returns the next date falling on day, today included, at
// hour:00 in now's location.
func TargetTimeOn(now time.Time, hour int, day time.Weekday) time.Time {
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	d := now.AddDate(0, 0, offset)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
}

// Timestamps returns anchor and the following n-1 hours.
func Timestamps(anchor time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = anchor.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// ClampHoursAhead bounds n to [1, limit]; limit itself is bounded to [1, 3].
func ClampHoursAhead(n, limit int) int {
	if limit < 1 || limit > MaxHoursAhead {
		limit = MaxHoursAhead
	}
	switch {
	case n < 1:
		return 1
	case n > limit:
		return limit
	default:
		return n
	}
}
