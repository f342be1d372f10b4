package engine

import (
	"time"
)

// ============================================================================
// DATE WINDOWS — date_histogram bucketing
// ============================================================================

// WindowStart truncates t to the start of its enclosing interval, in t's
// location. Weeks start on Monday (ISO 8601).
func WindowStart(t time.Time, interval DateInterval) (time.Time, bool) {
	loc := t.Location()
	switch interval {
	case IntervalMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
	case IntervalHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc), true
	case IntervalDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
	case IntervalWeek:
		offset := (int(t.Weekday()) + 6) % 7 // Monday → 0
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		return day.AddDate(0, 0, -offset), true
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc), true
	case IntervalYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

// FormatWindow renders a window start as a chart label.
func FormatWindow(start time.Time, interval DateInterval) string {
	switch interval {
	case IntervalMinute:
		return start.Format("2006-01-02 15:04")
	case IntervalHour:
		return start.Format("2006-01-02 15:00")
	case IntervalMonth:
		return start.Format("Jan 2006")
	case IntervalYear:
		return start.Format("2006")
	}
	return start.Format("2006-01-02")
}
