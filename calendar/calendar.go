/*
Package calendar provides working-day arithmetic for leave accounting.

PURPOSE:
  Everything the approval engine knows about dates lives here: the Date
  type (day granularity, always UTC), institutional holidays, and the
  working-day counter that leave balances are debited against.

KEY CONCEPTS:
  - Date: a calendar day, comparable and hashable
  - Holiday/HolidaySet: non-working days beyond weekends
  - CountWorkingDays: the single source of truth for "how many leave
    days does this request actually cost?"

DESIGN PRINCIPLES:
  1. Purity: CountWorkingDays has no side effects and no clock access
  2. Day granularity: there are no hours or minutes in leave accounting
  3. Inclusive ranges: both endpoints of a leave span count

SEE ALSO:
  - workdays.go: the counter itself
  - ledger: consumes the counts produced here
*/
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// DATE - A calendar day (UTC, day granularity)
// =============================================================================

// Date is a single calendar day. The zero value is the zero time.
type Date struct {
	t time.Time
}

// NewDate constructs a Date from year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar day (in UTC).
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for trusted literals; panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) Time() time.Time       { return d.t }

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO date string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.New("date must be a JSON string")
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// HOLIDAYS - Non-working days beyond weekends
// =============================================================================

// Holiday is a single non-working day (public or institution-custom).
// Recurring holidays repeat on the same month/day every year.
type Holiday struct {
	ID        string
	Date      Date
	Name      string
	Recurring bool
}

// HolidayCalendar answers "is this day a holiday?".
// Implemented by HolidaySet and by the persistent stores.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
}

// HolidaySet is an in-memory holiday calendar keyed by ISO date,
// with recurring holidays matched on month/day.
type HolidaySet struct {
	exact     map[string]struct{}
	recurring map[string]struct{} // keyed "01-02" (month-day)
}

// NewHolidaySet builds a set from holiday records.
func NewHolidaySet(holidays ...Holiday) *HolidaySet {
	hs := &HolidaySet{
		exact:     make(map[string]struct{}),
		recurring: make(map[string]struct{}),
	}
	for _, h := range holidays {
		hs.Add(h)
	}
	return hs
}

// Add inserts a holiday into the set.
func (hs *HolidaySet) Add(h Holiday) {
	if h.Recurring {
		hs.recurring[h.Date.t.Format("01-02")] = struct{}{}
		return
	}
	hs.exact[h.Date.String()] = struct{}{}
}

// AddDate inserts a plain non-recurring date.
func (hs *HolidaySet) AddDate(d Date) {
	hs.exact[d.String()] = struct{}{}
}

// IsHoliday reports whether the day is in the set.
func (hs *HolidaySet) IsHoliday(d Date) bool {
	if hs == nil {
		return false
	}
	if _, ok := hs.exact[d.String()]; ok {
		return true
	}
	_, ok := hs.recurring[d.t.Format("01-02")]
	return ok
}

// Len returns the number of distinct holiday rules in the set.
func (hs *HolidaySet) Len() int {
	return len(hs.exact) + len(hs.recurring)
}
