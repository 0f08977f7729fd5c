package util

import "time"

const DateFormat = "2006-01-02"

// ServiceDate renders t as a calendar date in loc.
func ServiceDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateFormat)
}

// MinutesOfDay returns the minutes elapsed since local midnight of t.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
