/*
chain.go - Approval chain resolution

PURPOSE:
  Answers two questions for any (request, stage) pair:
    - who should decide?   Resolver.Approver
    - may THIS person decide?  Resolver.Authorize

RESOLUTION ORDER:
  1. Individual assignment: an assignment naming the requester directly
  2. Department assignment: an assignment for the requester's department
  3. Override principals: configured admin accounts, accepted only when
     no assignment matched at all

  Delegations are lazy: an assignment with an active delegation window
  resolves to the delegate for the window's duration and silently
  reverts afterwards. Nothing is rewritten when a delegation is set up
  or expires.

SEE ALSO:
  - store.go: AssignmentStore, the lookup source
  - engine.go: calls Authorize before accepting a decision
*/
package approval

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// ASSIGNMENT - Who approves at a stage
// =============================================================================

// Assignment maps a stage to an approver, either for one employee
// (EmployeeID set) or for a whole department (Department set).
// Individual assignments take precedence over department ones.
type Assignment struct {
	ID    string
	Stage Stage

	// Scope: exactly one of these is set.
	EmployeeID EmployeeID
	Department Department

	ApproverID EmployeeID

	// Delegation window. While active, DelegateID decides instead of
	// ApproverID. Nil bounds mean an open end on that side.
	DelegateID      EmployeeID
	DelegationStart *time.Time
	DelegationEnd   *time.Time
}

// EffectiveApprover returns who decides under this assignment at the
// given instant, honoring any active delegation window.
func (a Assignment) EffectiveApprover(at time.Time) EmployeeID {
	if a.DelegateID != "" && a.delegationActiveAt(at) {
		return a.DelegateID
	}
	return a.ApproverID
}

func (a Assignment) delegationActiveAt(at time.Time) bool {
	if a.DelegationStart != nil && at.Before(*a.DelegationStart) {
		return false
	}
	if a.DelegationEnd != nil && at.After(*a.DelegationEnd) {
		return false
	}
	return true
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver resolves the approver for a request's stage from the
// assignment store, falling back to override principals when nothing
// is configured.
type Resolver struct {
	Assignments AssignmentStore

	// Overrides are admin principals that may decide any stage, but
	// only when no individual or department assignment matched.
	Overrides []EmployeeID
}

// Approver returns the primary approver for the request at the stage.
// Returns ErrNoApproverConfigured when neither an assignment nor an
// override principal exists.
func (r *Resolver) Approver(ctx context.Context, req *Request, stage Stage, at time.Time) (EmployeeID, error) {
	a, ok, err := r.lookup(ctx, req, stage)
	if err != nil {
		return "", err
	}
	if ok {
		return a.EffectiveApprover(at), nil
	}
	if len(r.Overrides) > 0 {
		return r.Overrides[0], nil
	}
	return "", &StageError{RequestID: req.ID, Stage: stage, Err: ErrNoApproverConfigured}
}

// Authorize reports whether actor may decide the request at the stage.
// Override principals are accepted only when no assignment matched.
func (r *Resolver) Authorize(ctx context.Context, req *Request, stage Stage, actor EmployeeID, at time.Time) error {
	a, ok, err := r.lookup(ctx, req, stage)
	if err != nil {
		return err
	}
	if ok {
		if a.EffectiveApprover(at) == actor {
			return nil
		}
		return &StageError{RequestID: req.ID, Stage: stage, ActorID: actor, Err: ErrUnauthorizedApprover}
	}
	for _, id := range r.Overrides {
		if id == actor {
			return nil
		}
	}
	if len(r.Overrides) == 0 {
		return &StageError{RequestID: req.ID, Stage: stage, ActorID: actor, Err: ErrNoApproverConfigured}
	}
	return &StageError{RequestID: req.ID, Stage: stage, ActorID: actor, Err: ErrUnauthorizedApprover}
}

// lookup finds the most specific assignment for the request at the
// stage: individual first, then department.
func (r *Resolver) lookup(ctx context.Context, req *Request, stage Stage) (Assignment, bool, error) {
	if a, err := r.Assignments.FindAssignmentForEmployee(ctx, stage, req.RequesterID); err == nil {
		return a, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Assignment{}, false, err
	}
	if a, err := r.Assignments.FindAssignmentForDepartment(ctx, stage, req.Department); err == nil {
		return a, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Assignment{}, false, err
	}
	return Assignment{}, false, nil
}
