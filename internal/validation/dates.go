package validation

import (
	"fmt"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

var dateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"01/02/2006 15:04",
}

// ParseDate parses a calendar date from a form field. HTML date inputs and
// US-style dates are tried first; anything else goes through the natural
// language parser ("March 5, 2024", "yesterday").
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	parsed, err := dps.Parse(nil, raw)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
	}
	t := parsed.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDateTime parses a date and time from a form field in loc.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date and time")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	parsed, err := dps.Parse(nil, raw)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, fmt.Errorf("unrecognised date and time %q", raw)
	}
	return parsed.Time, nil
}

// OptionalDate parses raw when it is non-empty. Errors are recorded on errs
// under field.
func OptionalDate(errs Errors, field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		errs.Add(field, "Must be a valid date")
		return nil
	}
	return &t
}
