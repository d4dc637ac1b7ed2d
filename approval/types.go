/*
Package approval implements the request approval engine.

PURPOSE:
  Owns the lifecycle of leave, procurement, and generic HR document
  requests: draft, the ordered pending stages, and the terminal
  approved/rejected states. One state machine handles every variant;
  the variants differ only in payload and in their configured stage
  pipeline.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: which variant a request is (leave, procurement, document)
  - Stage: one approval step (department head, procurement, director)
  - Status: where a request currently sits in its pipeline
  - Signature: who signed what, when, at which role

DESIGN PRINCIPLES:
  1. Tagged variants: one Request type, per-kind payload pointers
  2. Type safety: string-typed IDs prevent mixing employees and requests
  3. Derived fields (working days, estimated value) are computed, never
     hand-edited once signed

SEE ALSO:
  - request.go: the Request entity and validation
  - engine.go: submit/decide orchestration
  - chain.go: who may act at each stage
*/
package approval

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string
type Department string

// =============================================================================
// KIND - Request variants
// =============================================================================

type Kind string

const (
	KindLeave       Kind = "leave"
	KindProcurement Kind = "procurement"
	KindDocument    Kind = "document" // generic HR document
)

// Valid reports whether the kind is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindLeave, KindProcurement, KindDocument:
		return true
	}
	return false
}

// NumberPrefix returns the request-number prefix for the kind.
func (k Kind) NumberPrefix() string {
	switch k {
	case KindLeave:
		return "LV"
	case KindProcurement:
		return "PR"
	default:
		return "HR"
	}
}

// =============================================================================
// STAGE - One approval step in a pipeline
// =============================================================================

type Stage string

const (
	StageDepartmentHead Stage = "department_head"
	StageProcurement    Stage = "procurement"
	StageDirector       Stage = "director"
)

// Stages returns the ordered approval pipeline for a request kind.
// Procurement inserts its dedicated review stage before the director.
func Stages(k Kind) []Stage {
	switch k {
	case KindProcurement:
		return []Stage{StageDepartmentHead, StageProcurement, StageDirector}
	default:
		return []Stage{StageDepartmentHead, StageDirector}
	}
}

// =============================================================================
// STATUS - Request lifecycle states
// =============================================================================

type Status string

const (
	StatusDraft                 Status = "draft"
	StatusPendingDepartmentHead Status = "pending_department_head"
	StatusPendingProcurement    Status = "pending_procurement"
	StatusPendingDirector       Status = "pending_director"
	StatusApproved              Status = "approved"
	StatusRejected              Status = "rejected"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsPending reports whether the status is one of the pending stages.
func (s Status) IsPending() bool {
	switch s {
	case StatusPendingDepartmentHead, StatusPendingProcurement, StatusPendingDirector:
		return true
	}
	return false
}

// pendingStatus maps a stage to its pending status.
func pendingStatus(stage Stage) Status {
	switch stage {
	case StageDepartmentHead:
		return StatusPendingDepartmentHead
	case StageProcurement:
		return StatusPendingProcurement
	case StageDirector:
		return StatusPendingDirector
	}
	return ""
}

// stageOf maps a pending status back to its stage.
func stageOf(s Status) (Stage, bool) {
	switch s {
	case StatusPendingDepartmentHead:
		return StageDepartmentHead, true
	case StatusPendingProcurement:
		return StageProcurement, true
	case StatusPendingDirector:
		return StageDirector, true
	}
	return "", false
}

// =============================================================================
// DECISION
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// =============================================================================
// SIGNATURE - Attached to requests at submission and at each stage
// =============================================================================

type SignatureRole string

const (
	SignatureRequester      SignatureRole = "requester"
	SignatureDepartmentHead SignatureRole = "department_head"
	SignatureProcurement    SignatureRole = "procurement"
	SignatureDirector       SignatureRole = "director"
)

// signatureRoleFor returns the signature role an approver must attach
// when deciding at the given stage.
func signatureRoleFor(stage Stage) SignatureRole {
	switch stage {
	case StageDepartmentHead:
		return SignatureDepartmentHead
	case StageProcurement:
		return SignatureProcurement
	case StageDirector:
		return SignatureDirector
	}
	return ""
}

// Signature records who signed, when, and a reference to the stored
// signature image. The blob itself lives in external file storage.
type Signature struct {
	Role     SignatureRole
	SignerID EmployeeID
	SignedAt time.Time
	BlobRef  string
}

// =============================================================================
// EMPLOYEE - Identity + department + position
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	Email      string
	Department Department
	Position   string
	HireDate   time.Time
}
