package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DayLayout is the canonical wire format of a calendar day.
const DayLayout = "2006-01-02"

// Day is a calendar day with no time-of-day or zone component. It is stored
// as the number of days since 1970-01-01, so arithmetic and comparison are
// plain integer operations.
type Day int

// NewDay returns the Day for the given calendar date.
func NewDay(year int, month time.Month, day int) Day {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Day(t.Unix() / 86400)
}

// DayOf returns the calendar day t falls on in t's own location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return 0, &ValidationError{Field: "day", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return DayOf(t), nil
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Day) String() string {
	return d.Time().Format(DayLayout)
}

// AddDays returns d shifted by n days.
func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

// Weekday returns the day of the week of d.
func (d Day) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// StartOfWeek returns the Monday on or before d.
func (d Day) StartOfWeek() Day {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool { return d < o }

// After reports whether d is later than o.
func (d Day) After(o Day) bool { return d > o }

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value implements driver.Valuer.
func (d Day) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE and TEXT columns.
func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		if len(v) > len(DayLayout) {
			v = v[:len(DayLayout)]
		}
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("day: cannot scan %T", src)
	}
}
