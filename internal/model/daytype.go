package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DayType is the aggregation bucket used for historical rates and forecasts.
type DayType string

const (
	Weekday  DayType = "weekday"
	Saturday DayType = "saturday"
	Sunday   DayType = "sunday"
)

var titleCaser = cases.Title(language.English)

// ParseDayType resolves a day type from user input. Specific weekday names
// (monday..friday) map to Weekday; anything unrecognized defaults to Weekday.
func ParseDayType(s string) DayType {
	if d := ParseDayOfWeek(s); d.Set {
		return DayTypeFor(d.Day)
	}
	return Weekday
}

// DayOfWeek is a calendar day requested by name. Set is false when the input
// named a bucket ("weekday") or nothing recognizable.
type DayOfWeek struct {
	Day time.Weekday
	Set bool
}

var dayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseDayOfWeek resolves a specific day name such as "monday" or "Thu".
func ParseDayOfWeek(s string) DayOfWeek {
	d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]
	return DayOfWeek{Day: d, Set: ok}
}

// DayTypeOf returns the bucket for the calendar day of t.
func DayTypeOf(t time.Time) DayType {
	return DayTypeFor(t.Weekday())
}

// DayTypeFor returns the bucket a weekday belongs to.
func DayTypeFor(w time.Weekday) DayType {
	switch w {
	case time.Saturday:
		return Saturday
	case time.Sunday:
		return Sunday
	default:
		return Weekday
	}
}

// Matches reports whether a calendar weekday falls in the bucket.
func (d DayType) Matches(w time.Weekday) bool {
	switch d {
	case Saturday:
		return w == time.Saturday
	case Sunday:
		return w == time.Sunday
	default:
		return w >= time.Monday && w <= time.Friday
	}
}

// Label returns the display form, e.g. "Weekday".
func (d DayType) Label() string {
	return titleCaser.String(string(d))
}
