package stringutil

import (
	"strings"
	"time"
)

// FormatTime returns the RFC3339 representation of t, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ParseTime parses an RFC3339 time string. Empty input yields the zero time.
func ParseTime(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.RFC3339, val, time.Local)
}

// TruncString returns val truncated to at most max bytes.
func TruncString(val string, max int) string {
	if len(val) > max {
		return val[:max]
	}
	return val
}

// CollapseSpaces replaces every run of whitespace (including newlines)
// with a single space and trims the ends. Upstream feeds wrap titles and
// abstracts with hard line breaks.
func CollapseSpaces(val string) string {
	return strings.Join(strings.Fields(val), " ")
}
