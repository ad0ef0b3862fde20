package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DisplayTimeZone is the civil timezone used when handing instants to the
// calendar so events render at the venue's local wall-clock time. Instants
// are still compared and ordered in UTC everywhere else.
const DisplayTimeZone = "America/Argentina/Buenos_Aires"

var (
	displayLocOnce sync.Once
	displayLoc     *time.Location
)

// DisplayLocation returns the *time.Location for DisplayTimeZone.
// Falls back to UTC if the tzdata lookup fails.
func DisplayLocation() *time.Location {
	displayLocOnce.Do(func() {
		loc, err := time.LoadLocation(DisplayTimeZone)
		if err != nil {
			loc = time.UTC
		}
		displayLoc = loc
	})
	return displayLoc
}

// instantLayouts are the accepted ISO-8601-ish shapes, tried in order.
// Layouts without a zone designator are interpreted as UTC.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601-like date-time string. A trailing "Z" is
// treated as a zero UTC offset; text without any zone marker is read as UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date-time string")
	}

	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date-time %q", s)
}

// NormalizeUTC converts an ISO-8601-like string to a canonical UTC instant
// with a "Z" suffix. Callers must treat an error as invalid input, not as a
// transient failure.
func NormalizeUTC(s string) (string, error) {
	t, err := ParseInstant(s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339), nil
}
