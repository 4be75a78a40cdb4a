// Package expiry normalizes expiration timestamps received from the bank
// provider. The provider sends ISO-8601 strings and does not always include
// a UTC offset; offset-less values are interpreted in a configurable default
// location so that every timestamp entering the system is timezone-aware.
package expiry

import (
	"fmt"
	"strings"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultLocation sets the location used for offset-less timestamps
// (fallback UTC).
func SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// DefaultLocation returns the location currently used for offset-less
// timestamps.
func DefaultLocation() *time.Location {
	return defaultLoc
}

// Layouts without a zone indicator; parsed in the default location.
// time.Parse accepts fractional seconds even when the layout omits them.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse parses an ISO-8601 timestamp as sent by the provider. Values that
// carry an offset keep it; values without one get the default location.
// The empty string is an error; callers decide whether absence is valid.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, defaultLoc)
}

// ParseInLocation is Parse with an explicit location for offset-less values.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = defaultLoc
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}
