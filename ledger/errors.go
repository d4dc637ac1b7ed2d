package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit exceeds the
	// remaining balance.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrInvalidAdjustment is returned when a credit would drive used
	// days negative, or an operation amount is not positive.
	ErrInvalidAdjustment = errors.New("invalid balance adjustment")

	// ErrBalanceNotFound is returned by stores when no balance exists
	// for the employee/year.
	ErrBalanceNotFound = errors.New("leave balance not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID string
	Year       int
	Available  decimal.Decimal
	Requested  decimal.Decimal
	Shortfall  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s/%d: available %s, requested %s, shortfall %s",
		e.EmployeeID, e.Year, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
