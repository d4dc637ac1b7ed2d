package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intraflow/approval-engine/ledger"
)

func days(n int) decimal.Decimal { return ledger.Days(n) }

func TestDebit_ChargesAnnualEntitlement(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.UsedDays = days(5)
	require.True(t, b.Remaining().Equal(days(16)))

	got, err := ledger.Debit(b, days(3))
	require.NoError(t, err)

	assert.True(t, got.UsedDays.Equal(days(8)), "used: %s", got.UsedDays)
	assert.True(t, got.Remaining().Equal(days(13)), "remaining: %s", got.Remaining())
	// Original value untouched.
	assert.True(t, b.UsedDays.Equal(days(5)))
}

func TestDebit_ConsumesCarryoverFirst(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.CarryoverInitial = days(4)
	b.CarryoverRemaining = days(4)
	b.CarryoverFromYear = 2025

	got, err := ledger.Debit(b, days(6))
	require.NoError(t, err)

	assert.True(t, got.CarryoverRemaining.IsZero(), "carryover drained first")
	assert.True(t, got.UsedDays.Equal(days(2)))
	assert.True(t, got.Remaining().Equal(days(19)))
}

func TestDebit_InsufficientBalance(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.UsedDays = days(5)

	_, err := ledger.Debit(b, days(20))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	var detail *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &detail)
	assert.True(t, detail.Available.Equal(days(16)))
	assert.True(t, detail.Shortfall.Equal(days(4)))
}

func TestDebit_RejectsNonPositiveAmounts(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))

	_, err := ledger.Debit(b, days(0))
	assert.ErrorIs(t, err, ledger.ErrInvalidAdjustment)

	_, err = ledger.Debit(b, days(-2))
	assert.ErrorIs(t, err, ledger.ErrInvalidAdjustment)
}

func TestCredit_RestoresUsedThenCarryover(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.CarryoverInitial = days(4)
	b.CarryoverRemaining = days(4)

	debited, err := ledger.Debit(b, days(6)) // 4 carryover + 2 used
	require.NoError(t, err)

	credited, err := ledger.Credit(debited, days(6))
	require.NoError(t, err)

	assert.True(t, credited.UsedDays.IsZero())
	assert.True(t, credited.CarryoverRemaining.Equal(days(4)))
	assert.True(t, credited.Remaining().Equal(b.Remaining()))
}

func TestCredit_NeverDrivesUsedDaysNegative(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.UsedDays = days(2)

	_, err := ledger.Credit(b, days(3))
	assert.ErrorIs(t, err, ledger.ErrInvalidAdjustment)

	got, err := ledger.Credit(b, days(2))
	require.NoError(t, err)
	assert.True(t, got.UsedDays.IsZero())
}

func TestGrant_IncreasesEntitlement(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2027, days(0))

	got, err := ledger.Grant(b, days(21))
	require.NoError(t, err)
	assert.True(t, got.TotalDays.Equal(days(21)))
	assert.True(t, got.Remaining().Equal(days(21)))
}

func TestCarryOver_SeedsNextYear(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.UsedDays = days(16)
	require.True(t, b.Remaining().Equal(days(5)))

	next, err := ledger.CarryOver(b, days(5))
	require.NoError(t, err)

	assert.Equal(t, 2027, next.Year)
	assert.Equal(t, 2026, next.CarryoverFromYear)
	assert.True(t, next.CarryoverInitial.Equal(days(5)))
	assert.True(t, next.CarryoverRemaining.Equal(days(5)))
	assert.True(t, next.TotalDays.IsZero(), "entitlement comes from a separate grant")
}

func TestCarryOver_CannotExceedRemaining(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.UsedDays = days(18)

	_, err := ledger.CarryOver(b, days(5))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

// The core invariant: Remaining == Total + CarryoverRemaining - Used,
// and never negative, after any sequence of operations.
func TestBalanceInvariant_HoldsAcrossOperationSequences(t *testing.T) {
	b := ledger.NewBalance("emp-1", 2026, days(21))
	b.CarryoverInitial = days(3)
	b.CarryoverRemaining = days(3)

	check := func(b ledger.Balance) {
		t.Helper()
		expected := b.TotalDays.Add(b.CarryoverRemaining).Sub(b.UsedDays)
		require.True(t, b.Remaining().Equal(expected))
		require.False(t, b.Remaining().IsNegative(), "remaining went negative: %s", b.Remaining())
	}

	steps := []struct {
		op   func(ledger.Balance) (ledger.Balance, error)
		name string
	}{
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Debit(b, days(5)) }, "debit 5"},
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Credit(b, days(2)) }, "credit 2"},
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Debit(b, days(10)) }, "debit 10"},
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Debit(b, days(12)) }, "debit 12 (overdraw)"},
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Credit(b, days(13)) }, "credit 13"},
		{func(b ledger.Balance) (ledger.Balance, error) { return ledger.Grant(b, days(2)) }, "grant 2"},
	}

	for _, step := range steps {
		next, err := step.op(b)
		if err == nil {
			b = next
		}
		check(b)
	}
}
