package common

import "time"

const DateTimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in loc using DateTimeLayout; a nil loc keeps t's zone.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateTimeLayout)
}
