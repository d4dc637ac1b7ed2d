package calendar_test

import (
	"errors"
	"testing"
	"time"

	"github.com/intraflow/approval-engine/calendar"
)

func TestCountWorkingDays_FullWeek(t *testing.T) {
	// 2024-01-01 is a Monday; Mon-Sun inclusive = 5 working days.
	start := calendar.NewDate(2024, time.January, 1)
	end := calendar.NewDate(2024, time.January, 7)

	n, err := calendar.CountWorkingDays(start, end, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 working days, got %d", n)
	}
}

func TestCountWorkingDays_WithHoliday(t *testing.T) {
	start := calendar.NewDate(2024, time.January, 1)
	end := calendar.NewDate(2024, time.January, 7)

	holidays := calendar.NewHolidaySet(calendar.Holiday{
		Date: calendar.NewDate(2024, time.January, 1),
		Name: "New Year's Day",
	})

	n, err := calendar.CountWorkingDays(start, end, holidays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 working days with Jan 1 holiday, got %d", n)
	}
}

func TestCountWorkingDays_WeekendHolidayDoesNotDoubleCount(t *testing.T) {
	start := calendar.NewDate(2024, time.January, 1)
	end := calendar.NewDate(2024, time.January, 7)

	// Jan 6 2024 is a Saturday; marking it a holiday changes nothing.
	holidays := calendar.NewHolidaySet(calendar.Holiday{
		Date: calendar.NewDate(2024, time.January, 6),
		Name: "Epiphany",
	})

	n, err := calendar.CountWorkingDays(start, end, holidays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 working days, got %d", n)
	}
}

func TestCountWorkingDays_SingleDay(t *testing.T) {
	monday := calendar.NewDate(2024, time.January, 8)

	n, err := calendar.CountWorkingDays(monday, monday, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 working day for single Monday, got %d", n)
	}

	saturday := calendar.NewDate(2024, time.January, 6)
	n, err = calendar.CountWorkingDays(saturday, saturday, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 working days for single Saturday, got %d", n)
	}
}

func TestCountWorkingDays_ReversedRange(t *testing.T) {
	start := calendar.NewDate(2024, time.January, 7)
	end := calendar.NewDate(2024, time.January, 1)

	_, err := calendar.CountWorkingDays(start, end, nil)
	if !errors.Is(err, calendar.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestRecurringHoliday_MatchesEveryYear(t *testing.T) {
	holidays := calendar.NewHolidaySet(calendar.Holiday{
		Date:      calendar.NewDate(2020, time.December, 25),
		Name:      "Christmas Day",
		Recurring: true,
	})

	if !holidays.IsHoliday(calendar.NewDate(2024, time.December, 25)) {
		t.Error("recurring holiday should match in a later year")
	}
	if holidays.IsHoliday(calendar.NewDate(2024, time.December, 24)) {
		t.Error("adjacent day should not match")
	}
}

func TestWorkingDaysIn_ListsOnlyWorkdays(t *testing.T) {
	start := calendar.NewDate(2024, time.March, 8)  // Friday
	end := calendar.NewDate(2024, time.March, 11)   // Monday

	days, err := calendar.WorkingDaysIn(start, end, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 working days (Fri, Mon), got %d", len(days))
	}
	if days[0].String() != "2024-03-08" || days[1].String() != "2024-03-11" {
		t.Errorf("unexpected days: %v", days)
	}
}

func TestParseDate(t *testing.T) {
	d, err := calendar.ParseDate("2024-06-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.June || d.Day() != 15 {
		t.Errorf("parsed wrong date: %s", d)
	}

	if _, err := calendar.ParseDate("15/06/2024"); err == nil {
		t.Error("expected error for non-ISO format")
	}
}
