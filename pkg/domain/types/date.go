package types

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const dateKeyLayout = "2006-01-02"

// DateKey identifies a calendar day in the site's timezone, formatted as
// "2006-01-02". Keys compare lexicographically in chronological order, so
// range queries can use plain string comparison.
type DateKey string

// NewDateKey derives the calendar day of t in the given location. A nil
// location falls back to time.Local. The day boundary is midnight in that
// location, not in UTC: a capture at 23:30 local belongs to the local day
// even when UTC has already rolled over.
func NewDateKey(t time.Time, loc *time.Location) DateKey {
	if loc == nil {
		loc = time.Local
	}
	return DateKey(t.In(loc).Format(dateKeyLayout))
}

// ParseDateKey parses a string into a DateKey.
func ParseDateKey(s string) (DateKey, error) {
	if _, err := time.Parse(dateKeyLayout, s); err != nil {
		return "", goerr.Wrap(err, "invalid date key", goerr.V("value", s))
	}
	return DateKey(s), nil
}

// Validate checks if the DateKey is a well-formed calendar day.
func (d DateKey) Validate() error {
	_, err := ParseDateKey(string(d))
	return err
}

// String returns the string representation of the DateKey.
func (d DateKey) String() string {
	return string(d)
}

// Time returns midnight of the day in the given location.
func (d DateKey) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateKeyLayout, string(d), loc)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid date key", goerr.V("value", d))
	}
	return t, nil
}

// Before reports whether d is chronologically earlier than other.
func (d DateKey) Before(other DateKey) bool {
	return string(d) < string(other)
}
