package auth

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultMinimumAge is the youngest age allowed to register
const DefaultMinimumAge = 18

var dateOfBirthLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDateOfBirth accepts a calendar date or an RFC 3339 timestamp, only
// the date part is kept.
func ParseDateOfBirth(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateOfBirthLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("invalid date of birth", errors.CategoryValidation).
		WithTextCode(TextCodeInvalidInput).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{"dob": value})
}

// AgeOn returns the age in whole years on the calendar day of now. The
// birthday itself counts as a completed year. Someone born on Feb 29 turns
// a year older on Mar 1 in non leap years.
func AgeOn(dob, now time.Time) int {
	y1, m1, d1 := dob.Date()
	y2, m2, d2 := now.Date()

	age := y2 - y1
	if m2 < m1 || (m2 == m1 && d2 < d1) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
