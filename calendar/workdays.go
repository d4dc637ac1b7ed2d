package calendar

import "errors"

// ErrInvalidRange is returned when a range's end precedes its start.
var ErrInvalidRange = errors.New("invalid range: end before start")

// IsWorkday reports whether the date is a working day: not a weekend
// and not in the holiday calendar.
func IsWorkday(d Date, holidays HolidayCalendar) bool {
	if d.IsWeekend() {
		return false
	}
	if holidays != nil && holidays.IsHoliday(d) {
		return false
	}
	return true
}

// CountWorkingDays counts working days in [start, end], inclusive of
// both endpoints. A day counts unless it falls on Saturday, Sunday, or
// is present in the holiday calendar.
//
// Pure and deterministic: this is the basis for all leave-day
// accounting, so it must never consult the clock or any external state.
func CountWorkingDays(start, end Date, holidays HolidayCalendar) (int, error) {
	if start.After(end) {
		return 0, ErrInvalidRange
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsWorkday(d, holidays) {
			count++
		}
	}
	return count, nil
}

// WorkingDaysIn returns the working days in [start, end] as a slice.
// Used by stores and reports that need the individual dates, not just
// the count.
func WorkingDaysIn(start, end Date, holidays HolidayCalendar) ([]Date, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var days []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsWorkday(d, holidays) {
			days = append(days, d)
		}
	}
	return days, nil
}
