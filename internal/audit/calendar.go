package audit

import "time"

// MonthDay is a calendar date without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// DefaultHolidays are the dates FX and index CFDs are usually closed or thin.
var DefaultHolidays = []MonthDay{
	{time.December, 24}, {time.December, 25}, {time.December, 26},
	{time.December, 31}, {time.January, 1}, {time.January, 2},
}

const (
	maxWeekendGap = 55 * time.Hour
	maxHolidayGap = 4 * 24 * time.Hour
)

// Calendar decides whether a hole in the data is the market being closed.
type Calendar struct {
	Holidays []MonthDay
}

// Closed reports whether a gap starting at start and lasting d is explained
// by the weekend close or a holiday.
func (c Calendar) Closed(start time.Time, d time.Duration) bool {
	start = start.UTC()
	switch start.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		if d <= maxWeekendGap {
			return true
		}
	}
	// Only the start date counts; a hole opening the evening before a holiday is real.
	return d <= maxHolidayGap && c.holiday(start)
}

func (c Calendar) holiday(t time.Time) bool {
	for _, h := range c.Holidays {
		if t.Month() == h.Month && t.Day() == h.Day {
			return true
		}
	}
	return false
}
