package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format the backend uses for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. Two records logged
// at 00:05 and 23:55 of the same day are the "same day"; an instant 23 hours
// ago may not be. All comparisons are by year/month/day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the calendar date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the calendar date from an instant, in the instant's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date in the local timezone.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date in the backend's YYYY-MM-DD wire format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date. Used for arithmetic only; the zone
// is irrelevant as long as both sides of a comparison use the same one.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d (n may be negative).
// Normalization is handled by the time package.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysSince returns the number of whole days from other to d.
// Negative when other is in the future relative to d.
func (d Date) DaysSince(other Date) int {
	return int(d.Time().Sub(other.Time()) / (24 * time.Hour))
}

func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return other.Before(d)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string; the zero date
// encodes as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a YYYY-MM-DD string or null. A full RFC 3339
// timestamp is also accepted since some backend responses carry datetimes
// where the client only cares about the day.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err == nil {
		*d = parsed
		return nil
	}
	t, tErr := time.Parse(time.RFC3339, s)
	if tErr != nil {
		return err
	}
	*d = DateOf(t)
	return nil
}
