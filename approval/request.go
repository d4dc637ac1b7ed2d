/*
request.go - The request entity and its variant payloads

PURPOSE:
  Defines the tagged-variant Request type shared by the whole engine.
  Exactly one of the payload pointers (Leave, Procurement, Document) is
  set, matching Kind. Derived fields - a leave request's working-day
  count, a procurement request's estimated value - are computed by this
  package and immutable once the request carries a signature.

LIFECYCLE:
  draft ──submit──▶ pending_department_head ──▶ (pending_procurement)
        ──▶ pending_director ──▶ approved
  with rejected reachable from any pending stage, and draft deletable
  by its owner. See engine.go for the transitions.

SEE ALSO:
  - types.go: Kind, Stage, Status, Signature
  - engine.go: Submit/Decide orchestration
*/
package approval

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intraflow/approval-engine/calendar"
)

// =============================================================================
// REQUEST - Tagged variant over leave / procurement / document
// =============================================================================

// Request is a single leave, procurement, or HR document request.
// Only the owning requester may mutate it, and only while in draft;
// once submitted, only the current stage's approver transitions it.
type Request struct {
	ID     RequestID
	Number string // unique, human-readable, assigned at creation
	Kind   Kind

	RequesterID EmployeeID
	Department  Department

	Status          Status
	Signatures      []Signature
	RejectionReason string

	// Exactly one payload is non-nil, matching Kind.
	Leave       *LeaveDetails
	Procurement *ProcurementDetails
	Document    *DocumentDetails

	CreatedAt time.Time
	UpdatedAt time.Time
	DecidedAt *time.Time
}

// LeaveDetails is the payload of a leave request.
type LeaveDetails struct {
	StartDate calendar.Date
	EndDate   calendar.Date

	// WorkingDays is computed from the calendar at submission and is
	// immutable once the request is signed.
	WorkingDays decimal.Decimal

	// Replacement covers the requester's duties during the leave.
	Replacement EmployeeID
}

// ProcurementDetails is the payload of a procurement request.
type ProcurementDetails struct {
	Items []ProcurementItem

	// EstimatedValue = Σ quantity × unit price; recomputed on every
	// item edit, never hand-edited.
	EstimatedValue decimal.Decimal

	Category string
	Urgency  string
}

// ProcurementItem is one line of a procurement request.
type ProcurementItem struct {
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	UnitPrice decimal.Decimal
}

// DocumentDetails is the payload of a generic HR document request.
type DocumentDetails struct {
	Title string
	Body  string
}

// RecomputeEstimatedValue refreshes the derived total from the items.
// Called on every item edit and defensively before submission.
func (d *ProcurementDetails) RecomputeEstimatedValue() {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Quantity.Mul(item.UnitPrice))
	}
	d.EstimatedValue = total
}

// =============================================================================
// STAGE NAVIGATION
// =============================================================================

// CurrentStage returns the stage awaiting a decision, if any.
func (r *Request) CurrentStage() (Stage, bool) {
	return stageOf(r.Status)
}

// nextStatus returns the status after an approval at the current stage:
// the next pending stage, or approved when the current stage is last.
func (r *Request) nextStatus() Status {
	stage, ok := r.CurrentStage()
	if !ok {
		return r.Status
	}
	pipeline := Stages(r.Kind)
	for i, s := range pipeline {
		if s == stage {
			if i == len(pipeline)-1 {
				return StatusApproved
			}
			return pendingStatus(pipeline[i+1])
		}
	}
	return r.Status
}

// firstStage returns the entry stage of the request's pipeline.
func (r *Request) firstStage() Stage {
	return Stages(r.Kind)[0]
}

// =============================================================================
// SIGNATURES
// =============================================================================

// HasSignature reports whether a signature with the role is attached.
func (r *Request) HasSignature(role SignatureRole) bool {
	for _, s := range r.Signatures {
		if s.Role == role {
			return true
		}
	}
	return false
}

// AttachSignature appends a signature. Re-signing the same role is a
// no-op rather than an error; the first signature wins.
func (r *Request) AttachSignature(sig Signature) {
	if r.HasSignature(sig.Role) {
		return
	}
	r.Signatures = append(r.Signatures, sig)
}

// Signed reports whether the request carries any signature at all.
// Derived fields freeze once this is true.
func (r *Request) Signed() bool {
	return len(r.Signatures) > 0
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the mandatory fields for the request's kind.
// Returns a ValidationError naming every missing field.
func (r *Request) Validate() error {
	var missing []string

	if r.RequesterID == "" {
		missing = append(missing, "requester_id")
	}
	if r.Department == "" {
		missing = append(missing, "department")
	}
	if !r.Kind.Valid() {
		missing = append(missing, "kind")
	}

	switch r.Kind {
	case KindLeave:
		if r.Leave == nil {
			missing = append(missing, "leave")
			break
		}
		if r.Leave.StartDate.IsZero() {
			missing = append(missing, "leave.start_date")
		}
		if r.Leave.EndDate.IsZero() {
			missing = append(missing, "leave.end_date")
		}
	case KindProcurement:
		if r.Procurement == nil {
			missing = append(missing, "procurement")
			break
		}
		if len(r.Procurement.Items) == 0 {
			missing = append(missing, "procurement.items")
		}
		for _, item := range r.Procurement.Items {
			if strings.TrimSpace(item.Name) == "" || !item.Quantity.IsPositive() {
				missing = append(missing, "procurement.items (name and positive quantity required)")
				break
			}
		}
		if strings.TrimSpace(r.Procurement.Category) == "" {
			missing = append(missing, "procurement.category")
		}
	case KindDocument:
		if r.Document == nil {
			missing = append(missing, "document")
			break
		}
		if strings.TrimSpace(r.Document.Title) == "" {
			missing = append(missing, "document.title")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
