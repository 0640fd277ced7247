// Package dateparse turns free-text utterances into calendar dates and
// canonical times of day. All date math happens in the location carried by
// the reference instant, which the application fixes to a single civil zone.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Weekday and month names in civil order. Matching is case-insensitive.
var (
	WeekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	monthNames   = []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
)

// dateRule pairs a pattern with an extractor. Rules are evaluated in
// precedence order; the first rule whose extractor yields a date wins.
type dateRule struct {
	pattern *regexp.Regexp
	resolve func(m []string, now time.Time) (time.Time, bool)
}

var dateRules = []dateRule{
	{
		pattern: regexp.MustCompile(`\btoday\b`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return Midnight(now), true
		},
	},
	{
		pattern: regexp.MustCompile(`\btomorrow\b|\bnext day\b`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return Midnight(now).AddDate(0, 0, 1), true
		},
	},
	{
		pattern: regexp.MustCompile(`\b(this|next)\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			idx := weekdayIndex(m[2])
			delta := (idx - int(now.Weekday()) + 7) % 7
			if m[1] == "next" && delta == 0 {
				delta = 7
			}
			return Midnight(now).AddDate(0, 0, delta), true
		},
	},
	{
		pattern: regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?\b`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			month := monthIndex(m[1])
			day, _ := strconv.Atoi(m[2])
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
			return civilDate(year, month, day, now.Location())
		},
	},
	{
		pattern: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			return civilDate(year, time.Month(month), day, now.Location())
		},
	},
}

// ParseDate extracts a calendar date from free text relative to now.
// Returns ok=false when no rule matches; callers reprompt instead of
// defaulting.
func ParseDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return time.Time{}, false
	}
	for _, rule := range dateRules {
		m := rule.pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if d, ok := rule.resolve(m, now); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// ParseClock parses "8", "8:30", "8 PM" or "14:30" into the canonical
// "H:MM AM/PM" form. Hours of 12 or more without a meridiem are taken as
// 24-hour values; smaller hours without a meridiem are taken as given.
func ParseClock(text string) (string, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return "", false
	}
	meridiem := strings.ToUpper(m[3])
	if meridiem == "" {
		if hour > 23 {
			return "", false
		}
		if hour >= 12 {
			meridiem = "PM"
		} else {
			meridiem = "AM"
		}
	} else if hour < 1 || hour > 12 {
		return "", false
	}
	if meridiem == "PM" && hour < 12 {
		hour += 12
	}
	if meridiem == "AM" && hour == 12 {
		hour = 0
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, suffix), true
}

// SlotStart canonicalizes the start time of a slot label, stripping a
// trailing "to <end>" range marker if present. "8:00 AM to 9:00 AM" and
// "8:00 AM" both yield "8:00 AM".
func SlotStart(label string) (string, bool) {
	start := label
	if i := strings.Index(strings.ToLower(label), " to "); i >= 0 {
		start = label[:i]
	}
	return ParseClock(strings.TrimSpace(start))
}

// Midnight truncates an instant to its calendar date in its own location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatWordDate renders a date as "April 25, 2025 (Friday, Weekday)".
func FormatWordDate(t time.Time) string {
	kind := "Weekday"
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		kind = "Weekend"
	}
	return fmt.Sprintf("%s %d, %d (%s, %s)", monthNames[t.Month()-1], t.Day(), t.Year(), t.Weekday(), kind)
}

// civilDate builds a validated calendar date. time.Date normalizes
// out-of-range components, so a change after construction means the input
// was not a real date.
func civilDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func weekdayIndex(lower string) int {
	for i, name := range WeekdayNames {
		if strings.ToLower(name) == lower {
			return i
		}
	}
	return -1
}

func monthIndex(lower string) time.Month {
	for i, name := range monthNames {
		if strings.ToLower(name) == lower {
			return time.Month(i + 1)
		}
	}
	return 0
}
