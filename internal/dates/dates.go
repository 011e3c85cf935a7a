package dates

import (
	"fmt"
	"time"
)

// Layout is the wire format for civil dates in the organization store.
const Layout = "2006-01-02"

// TimeLayout is the wire format for the scheduled send time.
const TimeLayout = "15:04:05"

// Date is a civil calendar date with no time or timezone component.
// The zero value is "no date".
type Date struct {
	Year  int
	Month int
	Day   int
}

// New builds a date from its components. Components are not validated;
// use Parse for untrusted input.
func New(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// Parse parses a YYYY-MM-DD string into a Date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// MustParse parses a YYYY-MM-DD string and panics on failure. Test helper.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns the date at midnight UTC. Used internally for arithmetic so
// that day-level math is immune to DST transitions.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// FromTime truncates a time.Time to its civil date in the time's location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// DaysBetween returns the number of days from a to b (negative when b is
// earlier than a).
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// Compare returns -1, 0 or +1 comparing d against other chronologically.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	case d.Day != other.Day:
		return sign(d.Day - other.Day)
	}
	return 0
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Equal reports whether d and other are the same civil date.
func (d Date) Equal(other Date) bool { return d.Compare(other) == 0 }

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Anniversary projects anchor's month/day into the given year. A Feb-29
// anchor rolls to Feb-28 when the target year is not a leap year.
func Anniversary(anchor Date, year int) Date {
	day := anchor.Day
	if anchor.Month == 2 && anchor.Day == 29 && !IsLeap(year) {
		day = 28
	}
	return Date{Year: year, Month: anchor.Month, Day: day}
}

// NextAnniversary returns the earliest anniversary of anchor on or after
// today.
func NextAnniversary(today, anchor Date) Date {
	candidate := Anniversary(anchor, today.Year)
	if candidate.Before(today) {
		candidate = Anniversary(anchor, today.Year+1)
	}
	return candidate
}

// SendAt combines a civil date and an HH:MM:SS send time in the given
// location into an absolute timestamp.
func SendAt(d Date, sendTime string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(TimeLayout, sendTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid send time %q: %w", sendTime, err)
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}
