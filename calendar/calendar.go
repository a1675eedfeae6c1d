// Package calendar holds the week arithmetic behind weekly timesheets.
// Weeks run Monday through Sunday and are identified by their Sunday, the
// week-ending date. All dates are UTC midnights.
package calendar

import (
	"fmt"
	"iter"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	DaysInWeek = 7
)

// DateOf strips the clock from t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekEndingDate returns the Sunday closing the week that contains d.
func WeekEndingDate(d time.Time) time.Time {
	d = DateOf(d)
	offset := (DaysInWeek - int(d.Weekday())) % DaysInWeek
	return d.AddDate(0, 0, offset)
}

// WeekEndingDates yields count week-ending dates, newest first, starting at
// the week containing today.
func WeekEndingDates(today time.Time, count int) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		d := WeekEndingDate(today)
		for range count {
			if !yield(d) {
				return
			}
			d = d.AddDate(0, 0, -DaysInWeek)
		}
	}
}

// WeekDayDates returns the seven dates of the week ending on weekEnding,
// oldest first.
func WeekDayDates(weekEnding time.Time) [DaysInWeek]time.Time {
	var days [DaysInWeek]time.Time
	end := DateOf(weekEnding)
	for i := range days {
		days[i] = end.AddDate(0, 0, i-(DaysInWeek-1))
	}
	return days
}

// ParseClock parses an "HH:MM" time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatMinutes renders a minute count as H:MM.
func FormatMinutes(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%d:%02d", sign, minutes/60, minutes%60)
}
