// Package timeparse turns user-entered time text into absolute instants.
//
// Two shapes are recognized: 24-hour "HH:MM" and loose "<hour>[am|pm]"
// ("8am", "22"). A resolved time-of-day at or before the reference instant
// is pushed to the next calendar day, so "8am" typed at 9am means tomorrow.
package timeparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockPattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)
	loosePattern = regexp.MustCompile(`(\d{1,2})\s*(am|pm)?`)
)

// Resolve converts timeText into the next future instant relative to now.
func Resolve(timeText string) time.Time {
	return ResolveAt(timeText, time.Now())
}

// ResolveAt is Resolve against an explicit reference instant.
//
// Unrecognizable input degrades to now itself. Callers that want to reject
// such input up front should check Valid first.
func ResolveAt(timeText string, now time.Time) time.Time {
	hour, minute, ok := timeOfDay(timeText)
	if !ok {
		return now
	}
	return nextOccurrence(now, hour, minute)
}

// Valid reports whether timeText matches a recognizable shape, i.e. whether
// ResolveAt would return something other than the degenerate fallback. Both
// functions share one classification, so they can never disagree.
func Valid(timeText string) bool {
	_, _, ok := timeOfDay(timeText)
	return ok
}

// timeOfDay classifies timeText into an hour and minute. Text shaped like a
// clock reading ("HH:MM") is decided by the clock rule alone: "12:99" is
// malformed, not a loose "12".
func timeOfDay(timeText string) (hour, minute int, ok bool) {
	if m := clockPattern.FindStringSubmatch(timeText); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		return hour, minute, hour <= 23 && minute <= 59
	}

	if m := loosePattern.FindStringSubmatch(strings.ToLower(timeText)); m != nil {
		hour, _ = strconv.Atoi(m[1])
		switch {
		case m[2] == "pm" && hour < 12:
			hour += 12
		case m[2] == "am" && hour == 12:
			hour = 0
		}
		return hour, 0, hour <= 23
	}

	return 0, 0, false
}

// nextOccurrence anchors hour:minute on now's calendar day, rolling over to
// the next day when the candidate is at or before now. Never rolls further
// than one day.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	c := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !c.After(now) {
		c = c.AddDate(0, 0, 1)
	}
	return c
}

// DurationHours derives elapsed hours between two time texts.
func DurationHours(startText, endText string) float64 {
	return DurationHoursAt(startText, endText, time.Now())
}

// DurationHoursAt resolves both endpoints independently and corrects the
// overnight inversion: the resolver anchors each endpoint to today-or-tomorrow
// on its own, so an end that lands at or before the start gets one extra
// calendar day, exactly once. Empty input yields zero.
func DurationHoursAt(startText, endText string, now time.Time) float64 {
	if strings.TrimSpace(startText) == "" || strings.TrimSpace(endText) == "" {
		return 0
	}

	start := ResolveAt(startText, now)
	end := ResolveAt(endText, now)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	hours := end.Sub(start).Hours()
	return math.Round(hours*100) / 100
}

// SplitRange splits a slot description like "8am - 10am" into its endpoints.
func SplitRange(slotText string) (start, end string, ok bool) {
	parts := strings.SplitN(slotText, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	start = strings.TrimSpace(parts[0])
	end = strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}
