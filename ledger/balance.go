/*
Package ledger owns leave-day balance accounting.

PURPOSE:
  One LeaveBalance exists per employee per fiscal year. It is mutated
  ONLY through the pure operations in this package - Debit, Credit,
  Grant, CarryOver - each of which returns a NEW balance value. The
  caller (the approval engine) is responsible for persisting the new
  value transactionally with whatever request-state change triggered it.

THE INVARIANT:
  Remaining = TotalDays + CarryoverRemaining - UsedDays, and it is
  never negative. Every operation preserves this; Debit refuses to
  overdraw, Credit refuses to drive used days negative.

CARRY-OVER SUB-LEDGER:
  Days unused in a prior year are granted into the current year with
  their own counter pair (CarryoverInitial / CarryoverRemaining).
  Debits consume carry-over days first - they are the ones that expire -
  and only then increment UsedDays against the annual entitlement.
  Credits restore in the reverse order.

AUDITABILITY:
  Balance values are snapshots; the history lives in append-only
  Entry records (see entry.go) written alongside every committed
  mutation. The entries explain how a balance got where it is.

SEE ALSO:
  - entry.go: the immutable entry log
  - approval: invokes Debit inside the final-approval transaction
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE - Per employee, per fiscal year
// =============================================================================

// Balance is an employee's leave-day account for one fiscal year.
// Created at year rollover or first grant; never deleted, only
// superseded by the next year's record.
type Balance struct {
	EmployeeID string
	Year       int

	TotalDays decimal.Decimal // annual entitlement
	UsedDays  decimal.Decimal // consumed against the entitlement

	CarryoverInitial   decimal.Decimal // granted from the prior year
	CarryoverRemaining decimal.Decimal // still unconsumed carry-over
	CarryoverFromYear  int             // 0 = no carry-over
}

// NewBalance creates a fresh balance with the given annual entitlement.
func NewBalance(employeeID string, year int, totalDays decimal.Decimal) Balance {
	return Balance{
		EmployeeID: employeeID,
		Year:       year,
		TotalDays:  totalDays,
	}
}

// Remaining returns what can still be requested:
// TotalDays + CarryoverRemaining - UsedDays.
func (b Balance) Remaining() decimal.Decimal {
	return b.TotalDays.Add(b.CarryoverRemaining).Sub(b.UsedDays)
}

// CarryoverConsumed returns how many carry-over days have been used.
func (b Balance) CarryoverConsumed() decimal.Decimal {
	return b.CarryoverInitial.Sub(b.CarryoverRemaining)
}

// Days is a convenience constructor for day amounts.
func Days(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// =============================================================================
// OPERATIONS - Pure; each returns a new balance value
// =============================================================================

// Debit consumes leave days. Carry-over days are drained first, the
// rest is charged against the annual entitlement.
//
// Fails with InsufficientBalanceError when days exceed Remaining(),
// and ErrInvalidAdjustment when days is not positive.
func Debit(b Balance, days decimal.Decimal) (Balance, error) {
	if !days.IsPositive() {
		return b, ErrInvalidAdjustment
	}
	remaining := b.Remaining()
	if days.GreaterThan(remaining) {
		return b, &InsufficientBalanceError{
			EmployeeID: b.EmployeeID,
			Year:       b.Year,
			Available:  remaining,
			Requested:  days,
			Shortfall:  days.Sub(remaining),
		}
	}

	fromCarryover := decimal.Min(days, b.CarryoverRemaining)
	b.CarryoverRemaining = b.CarryoverRemaining.Sub(fromCarryover)
	b.UsedDays = b.UsedDays.Add(days.Sub(fromCarryover))
	return b, nil
}

// Credit returns leave days, e.g. after a rejection that followed a
// prior debit, or as a manual HR adjustment. Used days are restored
// first, then carry-over days (capped at CarryoverInitial).
//
// Fails with ErrInvalidAdjustment when the credit exceeds what was
// ever debited - a larger credit would drive used days negative.
func Credit(b Balance, days decimal.Decimal) (Balance, error) {
	if !days.IsPositive() {
		return b, ErrInvalidAdjustment
	}
	restorable := b.UsedDays.Add(b.CarryoverConsumed())
	if days.GreaterThan(restorable) {
		return b, ErrInvalidAdjustment
	}

	fromUsed := decimal.Min(days, b.UsedDays)
	b.UsedDays = b.UsedDays.Sub(fromUsed)
	b.CarryoverRemaining = b.CarryoverRemaining.Add(days.Sub(fromUsed))
	return b, nil
}

// Grant increases the annual entitlement (year setup, bonus days).
func Grant(b Balance, days decimal.Decimal) (Balance, error) {
	if !days.IsPositive() {
		return b, ErrInvalidAdjustment
	}
	b.TotalDays = b.TotalDays.Add(days)
	return b, nil
}

// CarryOver creates the NEXT year's balance, seeding its carry-over
// sub-ledger with the given days. The days must not exceed what the
// closing year still has remaining.
//
// The new balance has a zero annual entitlement; the new year's grant
// is a separate Grant operation.
func CarryOver(b Balance, days decimal.Decimal) (Balance, error) {
	if days.IsNegative() {
		return Balance{}, ErrInvalidAdjustment
	}
	if days.GreaterThan(b.Remaining()) {
		return Balance{}, &InsufficientBalanceError{
			EmployeeID: b.EmployeeID,
			Year:       b.Year,
			Available:  b.Remaining(),
			Requested:  days,
			Shortfall:  days.Sub(b.Remaining()),
		}
	}

	return Balance{
		EmployeeID:         b.EmployeeID,
		Year:               b.Year + 1,
		CarryoverInitial:   days,
		CarryoverRemaining: days,
		CarryoverFromYear:  b.Year,
	}, nil
}
