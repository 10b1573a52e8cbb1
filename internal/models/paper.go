// Package models holds the records that flow between pipeline stages.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Paper is an immutable catalog entry. The ID is the canonical short
// identifier with the version suffix stripped; it is the join key between
// stages and across runs.
type Paper struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Abstract    string `json:"abstract"`
	Authors     string `json:"authors"`
	Category    string `json:"category"`
	PublishDate Date   `json:"publish_date"`
	UpdateDate  Date   `json:"update_date"`
}

// PaperWithSummary is a Paper extended with a generated summary.
type PaperWithSummary struct {
	Paper
	Summary string `json:"summary"`
}

// CanonicalID strips a trailing version suffix from a catalog identifier,
// e.g. "2108.09112v1" -> "2108.09112". Identifiers without a version
// suffix are returned unchanged.
func CanonicalID(raw string) string {
	idx := strings.LastIndexByte(raw, 'v')
	if idx <= 0 || idx == len(raw)-1 {
		return raw
	}
	for _, r := range raw[idx+1:] {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return raw[:idx]
}

const dateLayout = "2006-01-02"

// Date is a calendar date that serializes as "YYYY-MM-DD". The zero Date
// serializes as an empty string.
type Date struct {
	time.Time
}

// NewDate returns the Date for the calendar day of t.
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String implements fmt.Stringer.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
