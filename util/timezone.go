package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timezone handling convention: a subscriber's timezone is stored as a signed
// offset in minutes east of UTC, and all persisted instants are naive UTC
// (time.Time in time.UTC with no zone semantics attached). Real-world offsets
// range from UTC-12:00 to UTC+14:00 and include half-hour and quarter-hour
// zones, so the math never assumes whole hours.

// LocalToUTC converts a naive local instant to the corresponding naive UTC
// instant given the offset in minutes east of UTC.
func LocalToUTC(local time.Time, offsetMinutes int) time.Time {
	return local.Add(-time.Duration(offsetMinutes) * time.Minute)
}

// UTCToLocal converts a naive UTC instant to the corresponding naive local
// instant given the offset in minutes east of UTC.
func UTCToLocal(utc time.Time, offsetMinutes int) time.Time {
	return utc.Add(time.Duration(offsetMinutes) * time.Minute)
}

// FormatOffset renders an offset in minutes as "UTC±HH:MM"
func FormatOffset(offsetMinutes int) string {
	sign := "+"
	minutes := offsetMinutes
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
}

// FormatOffsetWithLabel renders an offset as "UTC±HH:MM", prefixed with the
// human label when one is present and is not the literal "UTC"
func FormatOffsetWithLabel(offsetMinutes int, label string) string {
	display := FormatOffset(offsetMinutes)
	if len(label) > 0 && label != "UTC" {
		return fmt.Sprintf("%s (%s)", label, display)
	}
	return display
}

// ParseClock parses a wall clock string in "HH:MM" form
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q is not in HH:MM form", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q has an invalid hour", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q has an invalid minute", clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q is out of range", clock)
	}
	return hour, minute, nil
}

// CombineDateClock combines the date part of date with a wall clock time into
// a naive instant
func CombineDateClock(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
}
