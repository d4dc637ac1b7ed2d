package approval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a request, employee, or assignment
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotDraft is returned when an operation requires a draft
	// request (edit, delete, submit) and the request has left draft.
	ErrNotDraft = errors.New("request is not a draft")

	// ErrNotOwner is returned when someone other than the requester
	// tries to edit, submit, or delete a draft.
	ErrNotOwner = errors.New("request belongs to another employee")

	// ErrTerminalState is returned when a decision targets an already
	// approved or rejected request.
	ErrTerminalState = errors.New("request is in a terminal state")

	// ErrNotPending is returned when a decision targets a request that
	// has not been submitted yet.
	ErrNotPending = errors.New("request is not awaiting a decision")

	// ErrConcurrentModification is returned when a status transition
	// loses a compare-and-swap race with another writer.
	ErrConcurrentModification = errors.New("request was modified concurrently")

	// ErrNoApproverConfigured is returned when chain resolution finds
	// no assignment and no override principal for a stage.
	ErrNoApproverConfigured = errors.New("no approver configured for stage")

	// ErrUnauthorizedApprover is returned when the acting employee is
	// not the resolved approver for the request's current stage.
	ErrUnauthorizedApprover = errors.New("employee is not the approver for this stage")

	// ErrMissingSignature is returned when a decision arrives without
	// the signature its stage requires.
	ErrMissingSignature = errors.New("decision requires a signature")

	// ErrRejectionReasonRequired is returned when a rejection carries
	// no reason text.
	ErrRejectionReasonRequired = errors.New("rejection requires a reason")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError lists the missing or malformed fields of a request.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: missing %s", strings.Join(e.Missing, ", "))
}

// StageError ties a sentinel to the stage and actor it occurred at.
type StageError struct {
	RequestID RequestID
	Stage     Stage
	ActorID   EmployeeID
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("request %s, stage %s, actor %s: %v", e.RequestID, e.Stage, e.ActorID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// =============================================================================
// CLASSIFICATION - For transport layers and retry policies
// =============================================================================

// IsRetryable reports whether the caller may safely retry the same
// operation. Only CAS losses qualify; everything else reflects state
// that a blind retry would not change.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError reports whether the failure is the caller's fault
// (HTTP 4xx territory) rather than a server-side problem.
func IsClientError(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotDraft),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrTerminalState),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrUnauthorizedApprover),
		errors.Is(err, ErrMissingSignature),
		errors.Is(err, ErrRejectionReasonRequired),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAdjustment),
		errors.Is(err, calendar.ErrInvalidRange):
		return true
	}
	return false
}
