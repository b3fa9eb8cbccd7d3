package service

import (
	"strings"
	"time"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseDate accepts an RFC 3339 timestamp or a plain date. Empty input is nil.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fieldError(field, "The "+strings.ReplaceAll(field, "_", " ")+" is not a valid date.")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// errorBag collects per-field messages into a ValidationError.
type errorBag map[string][]string

func (b errorBag) add(field, msg string) {
	b[field] = append(b[field], msg)
}

func (b errorBag) err() error {
	if len(b) == 0 {
		return nil
	}
	return &ValidationError{Message: "The given data was invalid.", Fields: b}
}
