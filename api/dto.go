/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  JSON-facing structs, kept separate from the domain types so wire
  compatibility and domain evolution stay independent.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/ledger"
)

// =============================================================================
// REQUESTS (inbound)
// =============================================================================

type CreateRequestDTO struct {
	Kind        string                 `json:"kind"`
	RequesterID string                 `json:"requester_id"`
	Department  string                 `json:"department"`
	Leave       *LeaveDetailsDTO       `json:"leave,omitempty"`
	Procurement *ProcurementDetailsDTO `json:"procurement,omitempty"`
	Document    *DocumentDetailsDTO    `json:"document,omitempty"`
}

type LeaveDetailsDTO struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Replacement string `json:"replacement,omitempty"`
}

type ProcurementDetailsDTO struct {
	Items    []ProcurementItemDTO `json:"items"`
	Category string               `json:"category"`
	Urgency  string               `json:"urgency,omitempty"`
}

type ProcurementItemDTO struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type DocumentDetailsDTO struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

type SubmitDTO struct {
	SignatureRef string `json:"signature_ref"`
}

type DecideDTO struct {
	Decision     string `json:"decision"` // approve | reject
	Reason       string `json:"reason,omitempty"`
	SignatureRef string `json:"signature_ref,omitempty"`
}

type NoteDTO struct {
	Text string `json:"text"`
}

type AdjustmentDTO struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Days       decimal.Decimal `json:"days"` // positive credits, negative debits
	Reason     string          `json:"reason"`
}

type GrantDTO struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Days       decimal.Decimal `json:"days"`
}

type CarryOverDTO struct {
	EmployeeID string          `json:"employee_id"`
	FromYear   int             `json:"from_year"`
	Days       decimal.Decimal `json:"days"`
}

type AssignmentDTO struct {
	ID              string `json:"id"`
	Stage           string `json:"stage"`
	EmployeeID      string `json:"employee_id,omitempty"`
	Department      string `json:"department,omitempty"`
	ApproverID      string `json:"approver_id"`
	DelegateID      string `json:"delegate_id,omitempty"`
	DelegationStart string `json:"delegation_start,omitempty"`
	DelegationEnd   string `json:"delegation_end,omitempty"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring,omitempty"`
}

type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	HireDate   string `json:"hire_date,omitempty"`
}

// =============================================================================
// RESPONSES (outbound)
// =============================================================================

type RequestDTO struct {
	ID              string                 `json:"id"`
	Number          string                 `json:"number"`
	Kind            string                 `json:"kind"`
	RequesterID     string                 `json:"requester_id"`
	Department      string                 `json:"department"`
	Status          string                 `json:"status"`
	Signatures      []SignatureDTO         `json:"signatures,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Leave           *LeaveResponseDTO      `json:"leave,omitempty"`
	Procurement     *ProcurementDetailsDTO `json:"procurement,omitempty"`
	EstimatedValue  *decimal.Decimal       `json:"estimated_value,omitempty"`
	Document        *DocumentDetailsDTO    `json:"document,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	DecidedAt       string                 `json:"decided_at,omitempty"`
}

type LeaveResponseDTO struct {
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	WorkingDays decimal.Decimal `json:"working_days"`
	Replacement string          `json:"replacement,omitempty"`
}

type SignatureDTO struct {
	Role     string `json:"role"`
	SignerID string `json:"signer_id"`
	SignedAt string `json:"signed_at"`
	BlobRef  string `json:"blob_ref,omitempty"`
}

type BalanceDTO struct {
	EmployeeID         string          `json:"employee_id"`
	Year               int             `json:"year"`
	TotalDays          decimal.Decimal `json:"total_days"`
	UsedDays           decimal.Decimal `json:"used_days"`
	CarryoverInitial   decimal.Decimal `json:"carryover_initial"`
	CarryoverRemaining decimal.Decimal `json:"carryover_remaining"`
	CarryoverFromYear  int             `json:"carryover_from_year,omitempty"`
	Remaining          decimal.Decimal `json:"remaining"`
}

type EntryDTO struct {
	ID        string          `json:"id"`
	Delta     decimal.Decimal `json:"delta"`
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type AuditEntryDTO struct {
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	Stage     string `json:"stage,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type WorkdaysDTO struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	WorkingDays int    `json:"working_days"`
}

type ApproverDTO struct {
	ApproverID string `json:"approver_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toRequestDTO(r *approval.Request) RequestDTO {
	dto := RequestDTO{
		ID:              string(r.ID),
		Number:          r.Number,
		Kind:            string(r.Kind),
		RequesterID:     string(r.RequesterID),
		Department:      string(r.Department),
		Status:          string(r.Status),
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	for _, s := range r.Signatures {
		dto.Signatures = append(dto.Signatures, SignatureDTO{
			Role:     string(s.Role),
			SignerID: string(s.SignerID),
			SignedAt: s.SignedAt.Format(time.RFC3339),
			BlobRef:  s.BlobRef,
		})
	}
	if r.Leave != nil {
		dto.Leave = &LeaveResponseDTO{
			StartDate:   r.Leave.StartDate.String(),
			EndDate:     r.Leave.EndDate.String(),
			WorkingDays: r.Leave.WorkingDays,
			Replacement: string(r.Leave.Replacement),
		}
	}
	if r.Procurement != nil {
		p := &ProcurementDetailsDTO{
			Category: r.Procurement.Category,
			Urgency:  r.Procurement.Urgency,
		}
		for _, item := range r.Procurement.Items {
			p.Items = append(p.Items, ProcurementItemDTO{
				Name:      item.Name,
				Quantity:  item.Quantity,
				Unit:      item.Unit,
				UnitPrice: item.UnitPrice,
			})
		}
		dto.Procurement = p
		v := r.Procurement.EstimatedValue
		dto.EstimatedValue = &v
	}
	if r.Document != nil {
		dto.Document = &DocumentDetailsDTO{Title: r.Document.Title, Body: r.Document.Body}
	}
	return dto
}

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:         b.EmployeeID,
		Year:               b.Year,
		TotalDays:          b.TotalDays,
		UsedDays:           b.UsedDays,
		CarryoverInitial:   b.CarryoverInitial,
		CarryoverRemaining: b.CarryoverRemaining,
		CarryoverFromYear:  b.CarryoverFromYear,
		Remaining:          b.Remaining(),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:        e.ID,
		Delta:     e.Delta,
		Type:      string(e.Type),
		RequestID: e.RequestID,
		Reason:    e.Reason,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
