package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY - Immutable record of a balance mutation
// =============================================================================

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryDebit      EntryType = "debit"      // final approval of a leave request
	EntryCredit     EntryType = "credit"     // reversal or HR credit
	EntryGrant      EntryType = "grant"      // annual entitlement grant
	EntryCarryover  EntryType = "carryover"  // seeded next-year carry-over
	EntryAdjustment EntryType = "adjustment" // manual admin correction
)

// Entry records one committed balance mutation. Entries are append-only:
// corrections are new entries of opposite sign, never edits.
type Entry struct {
	ID         string
	EmployeeID string
	Year       int
	Delta      decimal.Decimal // negative for debits, positive for credits/grants
	Type       EntryType

	// RequestID links the entry to the request whose approval or
	// rejection produced it; empty for manual adjustments.
	RequestID string
	Reason    string

	// IdempotencyKey guards against double-writes: the same approval
	// commit retried never produces two debits.
	IdempotencyKey string

	CreatedBy string
	CreatedAt time.Time
}
