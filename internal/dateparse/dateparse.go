// Package dateparse turns the date shorthands accepted on the command line
// into calendar dates (YYYY-MM-DD).
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the calendar date format stored on plans and expenses.
const Layout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Parse resolves input relative to the current day. See ParseFrom.
func Parse(input string) (string, error) {
	return ParseFrom(input, time.Now())
}

// ParseFrom resolves input relative to now.
//
// Accepted forms:
//   - a calendar date: "2026-04-01"
//   - "today", "tomorrow", "yesterday"
//   - an offset in days, weeks or months: "+3d", "-1w", "+2m"
//   - a weekday, meaning its next occurrence: "fri"; prefixed with
//     "last " for the previous one: "last fri"
//
// An empty input returns an empty date so optional fields stay unset.
func ParseFrom(input string, now time.Time) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(Layout, s); err == nil {
		return t.Format(Layout), nil
	}

	switch s {
	case "today":
		return now.Format(Layout), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(Layout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(Layout), nil
	}

	if s[0] == '+' || s[0] == '-' {
		return offset(s, now)
	}

	back := false
	if rest, ok := strings.CutPrefix(s, "last "); ok {
		back, s = true, strings.TrimSpace(rest)
	}
	if wd, ok := weekdays[s]; ok {
		return nearestWeekday(now, wd, back).Format(Layout), nil
	}

	return "", fmt.Errorf("unrecognized date %q (use YYYY-MM-DD, today, +3d or a weekday)", input)
}

func offset(s string, now time.Time) (string, error) {
	if len(s) < 3 {
		return "", fmt.Errorf("invalid offset %q", s)
	}
	n, err := strconv.Atoi(s[1 : len(s)-1])
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid offset %q", s)
	}
	if s[0] == '-' {
		n = -n
	}
	switch s[len(s)-1] {
	case 'd':
		return now.AddDate(0, 0, n).Format(Layout), nil
	case 'w':
		return now.AddDate(0, 0, 7*n).Format(Layout), nil
	case 'm':
		return now.AddDate(0, n, 0).Format(Layout), nil
	}
	return "", fmt.Errorf("unknown unit in %q (use d, w or m)", s)
}

// nearestWeekday never returns now itself: "fri" on a Friday is a week out.
func nearestWeekday(now time.Time, wd time.Weekday, back bool) time.Time {
	if back {
		days := (int(now.Weekday()) - int(wd) + 7) % 7
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, -days)
	}
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}
