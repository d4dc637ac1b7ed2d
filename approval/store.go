/*
store.go - Persistence contracts

PURPOSE:
  The engine talks to storage only through these interfaces. Two
  implementations exist: an in-memory store for tests and small
  deployments, and a SQLite store for durable single-node use.

TRANSACTION MODEL:
  TxStore.WithTx runs a function against a transactional view of the
  store. Everything the function writes commits atomically, or not at
  all. The engine uses this to couple a final approval with its
  balance debit: either both land or neither does.

CONCURRENCY MODEL:
  Status transitions go through UpdateRequestStatus, a compare-and-swap
  on the stored status. A stale writer gets ErrConcurrentModification
  and must re-read. This, plus WithTx, is what makes double-debits
  impossible under racing approvers.

SEE ALSO:
  - store/memory: mutex + snapshot rollback implementation
  - store/sqlite: WAL-mode implementation with SQL-level CAS
*/
package approval

import (
	"context"
	"time"

	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
)

// =============================================================================
// REQUEST STORAGE
// =============================================================================

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	RequesterID EmployeeID
	Department  Department
	Kind        Kind
	Status      Status
	Number      string
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error)

	// UpdateRequest rewrites a draft's mutable fields. Callers must
	// not use it for status transitions.
	UpdateRequest(ctx context.Context, r *Request) error

	// UpdateRequestStatus is a compare-and-swap: the write succeeds
	// only if the stored status still equals expected. A lost race
	// returns ErrConcurrentModification. Signatures, rejection reason,
	// and decision timestamp ride along with the winning write.
	UpdateRequestStatus(ctx context.Context, r *Request, expected Status) error

	DeleteRequest(ctx context.Context, id RequestID) error

	// NextRequestNumber allocates a unique sequential number for the
	// kind, e.g. LV-2026-0042.
	NextRequestNumber(ctx context.Context, kind Kind, year int) (string, error)
}

// =============================================================================
// BALANCE + ENTRY STORAGE
// =============================================================================

type BalanceStore interface {
	GetBalance(ctx context.Context, employeeID EmployeeID, year int) (ledger.Balance, error)
	PutBalance(ctx context.Context, b ledger.Balance) error
	ListBalances(ctx context.Context, year int) ([]ledger.Balance, error)
}

type EntryStore interface {
	// AppendEntry writes one immutable ledger entry. A duplicate
	// idempotency key is a silent no-op, not an error.
	AppendEntry(ctx context.Context, e ledger.Entry) error
	ListEntries(ctx context.Context, employeeID EmployeeID, year int) ([]ledger.Entry, error)
}

// =============================================================================
// CHAIN + CALENDAR STORAGE
// =============================================================================

type AssignmentStore interface {
	PutAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignments(ctx context.Context) ([]Assignment, error)

	// FindAssignmentForEmployee returns the individual assignment for
	// the employee at the stage, or ErrNotFound.
	FindAssignmentForEmployee(ctx context.Context, stage Stage, employeeID EmployeeID) (Assignment, error)

	// FindAssignmentForDepartment returns the department-level
	// assignment at the stage, or ErrNotFound.
	FindAssignmentForDepartment(ctx context.Context, stage Stage, dept Department) (Assignment, error)
}

type HolidayStore interface {
	PutHoliday(ctx context.Context, h calendar.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]calendar.Holiday, error)
}

type EmployeeStore interface {
	PutEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditAction classifies an audit entry.
type AuditAction string

const (
	AuditCreated   AuditAction = "created"
	AuditSubmitted AuditAction = "submitted"
	AuditApproved  AuditAction = "approved"
	AuditRejected  AuditAction = "rejected"
	AuditDeleted   AuditAction = "deleted"
	AuditNoted     AuditAction = "noted"
	AuditAdjusted  AuditAction = "balance_adjusted"
	AuditRendered  AuditAction = "document_rendered"
)

// AuditEntry is one append-only line in a request's history.
type AuditEntry struct {
	ID        string
	RequestID RequestID
	ActorID   EmployeeID
	Action    AuditAction
	Stage     Stage // set for stage decisions
	Detail    string
	CreatedAt time.Time
}

type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, requestID RequestID) ([]AuditEntry, error)
}

// =============================================================================
// AGGREGATE + TRANSACTIONS
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	RequestStore
	BalanceStore
	EntryStore
	AssignmentStore
	HolidayStore
	EmployeeStore
	AuditLog
}

// TxStore is a Store that can also run a function transactionally.
// The Store handed to fn sees uncommitted writes; if fn returns an
// error, everything it wrote is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
