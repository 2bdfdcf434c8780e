package domain

import "time"

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths behaves like Excel's EDATE: month-end overflow clamps to the last
// day of the target month instead of rolling into the next one.
func AddMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// MonthsBetween counts whole months from start to end (EDATE steps that do not pass end).
func MonthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return -MonthsBetween(end, start)
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	for months > 0 && AddMonths(start, months).After(end) {
		months--
	}
	return months
}

// DaysBetween counts calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours() / 24)
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
