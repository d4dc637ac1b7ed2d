/*
engine.go - The approval engine

PURPOSE:
  Orchestrates everything: draft lifecycle, submission, stage
  decisions, the balance debit that accompanies a final leave
  approval, manual ledger adjustments, and document rendering.

WHY TRANSITIONS ARE SAFE:
  Every status change is a compare-and-swap against the status the
  engine read, so two approvers racing on the same request produce
  exactly one winner; the loser gets ErrConcurrentModification. The
  final leave approval couples the status write and the balance debit
  in one store transaction, so a crash between them cannot leave an
  approved request without its debit or vice versa.

NOTIFICATIONS:
  Sent after the state change commits, never before, and a failing
  sink is logged and ignored. Losing a notification is acceptable;
  losing a debit is not.

SEE ALSO:
  - store.go: the persistence contracts this relies on
  - chain.go: who may decide at each stage
*/
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine wires the store, the chain resolver, and the outbound
// contracts together. Construct with NewEngine.
type Engine struct {
	store    TxStore
	resolver *Resolver
	sink     NotificationSink
	renderer DocumentRenderer
	log      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine builds an engine. sink and renderer may be nil; a nil
// sink drops events silently and a nil renderer refuses to render.
func NewEngine(store TxStore, resolver *Resolver, sink NotificationSink, renderer DocumentRenderer, log zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		sink:     sink,
		renderer: renderer,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// =============================================================================
// DRAFT LIFECYCLE
// =============================================================================

// CreateDraft stores a new draft request owned by its requester.
// The request number is allocated immediately so the requester can
// reference it before submission.
func (e *Engine) CreateDraft(ctx context.Context, req *Request) (*Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Procurement != nil {
		req.Procurement.RecomputeEstimatedValue()
	}

	now := e.now()
	req.ID = RequestID(uuid.NewString())
	req.Status = StatusDraft
	req.Signatures = nil
	req.CreatedAt = now
	req.UpdatedAt = now

	number, err := e.store.NextRequestNumber(ctx, req.Kind, now.Year())
	if err != nil {
		return nil, fmt.Errorf("allocate request number: %w", err)
	}
	req.Number = number

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	e.audit(ctx, req.ID, req.RequesterID, AuditCreated, "", string(req.Kind))

	e.log.Info().
		Str("request_id", string(req.ID)).
		Str("number", req.Number).
		Str("kind", string(req.Kind)).
		Str("requester", string(req.RequesterID)).
		Msg("draft created")
	return req, nil
}

// UpdateDraft rewrites a draft's payload. Only the owner may edit,
// and only while the request is still a draft.
func (e *Engine) UpdateDraft(ctx context.Context, actor EmployeeID, req *Request) (*Request, error) {
	stored, err := e.store.GetRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if stored.RequesterID != actor {
		return nil, ErrNotOwner
	}
	if stored.Status != StatusDraft {
		return nil, ErrNotDraft
	}

	stored.Leave = req.Leave
	stored.Procurement = req.Procurement
	stored.Document = req.Document
	if stored.Procurement != nil {
		stored.Procurement.RecomputeEstimatedValue()
	}
	if err := stored.Validate(); err != nil {
		return nil, err
	}
	stored.UpdatedAt = e.now()

	if err := e.store.UpdateRequest(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// DeleteDraft removes a draft. Submitted requests are never deleted;
// they are decided or withdrawn through the chain, keeping the audit
// trail intact.
func (e *Engine) DeleteDraft(ctx context.Context, actor EmployeeID, id RequestID) error {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.RequesterID != actor {
		return ErrNotOwner
	}
	if req.Status != StatusDraft {
		return ErrNotDraft
	}
	if err := e.store.DeleteRequest(ctx, id); err != nil {
		return err
	}
	e.audit(ctx, id, actor, AuditDeleted, "", "")
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit moves a draft into its first pending stage.
//
// For leave requests this is where the working-day count is fixed:
// the span is priced against the holiday calendar, and the result is
// checked (without committing anything) against the requester's
// balance, so a request that could never be approved fails here with
// ErrInsufficientBalance instead of at the director's desk.
func (e *Engine) Submit(ctx context.Context, actor EmployeeID, id RequestID, sig Signature) (*Request, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actor {
		return nil, ErrNotOwner
	}
	if req.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sig.SignerID != actor {
		return nil, ErrMissingSignature
	}

	now := e.now()
	if req.Kind == KindLeave {
		days, err := e.priceLeave(ctx, req.Leave)
		if err != nil {
			return nil, err
		}
		req.Leave.WorkingDays = days

		bal, err := e.store.GetBalance(ctx, req.RequesterID, req.Leave.StartDate.Year())
		if err != nil {
			return nil, err
		}
		if _, err := ledger.Debit(bal, days); err != nil {
			return nil, err
		}
	}
	if req.Procurement != nil {
		req.Procurement.RecomputeEstimatedValue()
	}

	sig.Role = SignatureRequester
	sig.SignedAt = now
	req.AttachSignature(sig)

	req.Status = pendingStatus(req.firstStage())
	req.UpdatedAt = now
	if err := e.store.UpdateRequestStatus(ctx, req, StatusDraft); err != nil {
		return nil, err
	}
	e.audit(ctx, req.ID, actor, AuditSubmitted, "", "")
	e.notifyNextApprover(ctx, req, EventSubmitted, actor, "")

	e.log.Info().
		Str("request_id", string(req.ID)).
		Str("number", req.Number).
		Str("status", string(req.Status)).
		Msg("request submitted")
	return req, nil
}

// priceLeave counts the working days of a leave span against the
// stored holiday calendar. A span containing no working days at all
// is rejected; it would debit nothing and approve nothing.
func (e *Engine) priceLeave(ctx context.Context, l *LeaveDetails) (decimal.Decimal, error) {
	holidays, err := e.holidaySet(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	n, err := calendar.CountWorkingDays(l.StartDate, l.EndDate, holidays)
	if err != nil {
		return decimal.Zero, err
	}
	if n == 0 {
		return decimal.Zero, &ValidationError{Missing: []string{"leave range contains no working days"}}
	}
	return ledger.Days(n), nil
}

func (e *Engine) holidaySet(ctx context.Context) (*calendar.HolidaySet, error) {
	list, err := e.store.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.NewHolidaySet(list...), nil
}

// WorkingDaysBetween exposes leave pricing for previews, so the UI
// can show the cost of a span before a draft exists.
func (e *Engine) WorkingDaysBetween(ctx context.Context, start, end calendar.Date) (int, error) {
	holidays, err := e.holidaySet(ctx)
	if err != nil {
		return 0, err
	}
	return calendar.CountWorkingDays(start, end, holidays)
}

// =============================================================================
// DECISIONS
// =============================================================================

// Decide records an approval or rejection at the request's current
// stage. The actor must be the resolved approver for that stage, an
// approval must carry a signature, and a rejection must carry a
// reason. A final leave approval debits the requester's balance in
// the same transaction as the status change.
func (e *Engine) Decide(ctx context.Context, actor EmployeeID, id RequestID, decision Decision, sig Signature, reason string) (*Request, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	stage, ok := req.CurrentStage()
	if !ok {
		return nil, ErrNotPending
	}
	now := e.now()
	if err := e.resolver.Authorize(ctx, req, stage, actor, now); err != nil {
		return nil, err
	}

	expected := req.Status
	switch decision {
	case DecisionReject:
		if strings.TrimSpace(reason) == "" {
			return nil, ErrRejectionReasonRequired
		}
		req.Status = StatusRejected
		req.RejectionReason = reason
		req.DecidedAt = &now
		req.UpdatedAt = now
		if err := e.store.UpdateRequestStatus(ctx, req, expected); err != nil {
			return nil, err
		}
		e.audit(ctx, req.ID, actor, AuditRejected, stage, reason)
		e.notify(ctx, Event{Type: EventRejected, Request: req, Recipient: req.RequesterID, ActorID: actor, Reason: reason})
		e.log.Info().
			Str("request_id", string(req.ID)).
			Str("stage", string(stage)).
			Str("actor", string(actor)).
			Msg("request rejected")
		return req, nil

	case DecisionApprove:
		if sig.SignerID != actor || sig.SignerID == "" {
			return nil, &StageError{RequestID: req.ID, Stage: stage, ActorID: actor, Err: ErrMissingSignature}
		}
		sig.Role = signatureRoleFor(stage)
		sig.SignedAt = now
		req.AttachSignature(sig)

		next := req.nextStatus()
		req.Status = next
		req.UpdatedAt = now

		if next == StatusApproved {
			req.DecidedAt = &now
			if err := e.commitFinalApproval(ctx, req, expected, actor); err != nil {
				return nil, err
			}
			e.audit(ctx, req.ID, actor, AuditApproved, stage, "final")
			e.notify(ctx, Event{Type: EventApproved, Request: req, Recipient: req.RequesterID, ActorID: actor})
		} else {
			if err := e.store.UpdateRequestStatus(ctx, req, expected); err != nil {
				return nil, err
			}
			e.audit(ctx, req.ID, actor, AuditApproved, stage, "")
			e.notifyNextApprover(ctx, req, EventStageApproved, actor, "")
		}
		e.log.Info().
			Str("request_id", string(req.ID)).
			Str("stage", string(stage)).
			Str("actor", string(actor)).
			Str("status", string(req.Status)).
			Msg("request approved")
		return req, nil

	default:
		return nil, &ValidationError{Missing: []string{"decision"}}
	}
}

// commitFinalApproval lands the terminal approval. For leave, the
// status change, the balance debit, and the ledger entry commit in
// one transaction; the entry's idempotency key makes a replayed
// commit a no-op at the entry level.
func (e *Engine) commitFinalApproval(ctx context.Context, req *Request, expected Status, actor EmployeeID) error {
	if req.Kind != KindLeave {
		return e.store.UpdateRequestStatus(ctx, req, expected)
	}
	return e.store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateRequestStatus(ctx, req, expected); err != nil {
			return err
		}
		year := req.Leave.StartDate.Year()
		bal, err := s.GetBalance(ctx, req.RequesterID, year)
		if err != nil {
			return err
		}
		debited, err := ledger.Debit(bal, req.Leave.WorkingDays)
		if err != nil {
			return err
		}
		if err := s.PutBalance(ctx, debited); err != nil {
			return err
		}
		return s.AppendEntry(ctx, ledger.Entry{
			ID:             uuid.NewString(),
			EmployeeID:     string(req.RequesterID),
			Year:           year,
			Delta:          req.Leave.WorkingDays.Neg(),
			Type:           ledger.EntryDebit,
			RequestID:      string(req.ID),
			Reason:         "leave approved: " + req.Number,
			IdempotencyKey: "debit:" + string(req.ID),
			CreatedBy:      string(actor),
			CreatedAt:      e.now(),
		})
	})
}

// ApproverFor resolves who currently has to act on the request.
func (e *Engine) ApproverFor(ctx context.Context, id RequestID) (EmployeeID, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return "", err
	}
	stage, ok := req.CurrentStage()
	if !ok {
		return "", ErrNotPending
	}
	return e.resolver.Approver(ctx, req, stage, e.now())
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// Balance returns an employee's balance for the year.
func (e *Engine) Balance(ctx context.Context, employeeID EmployeeID, year int) (ledger.Balance, error) {
	return e.store.GetBalance(ctx, employeeID, year)
}

// Entries returns an employee's ledger history for the year.
func (e *Engine) Entries(ctx context.Context, employeeID EmployeeID, year int) ([]ledger.Entry, error) {
	return e.store.ListEntries(ctx, employeeID, year)
}

// Adjust applies a manual correction to a balance: positive days are
// credited, negative days debited. Writes the balance and its entry
// in one transaction.
func (e *Engine) Adjust(ctx context.Context, actor EmployeeID, employeeID EmployeeID, year int, days decimal.Decimal, reason string) (ledger.Balance, error) {
	if strings.TrimSpace(reason) == "" {
		return ledger.Balance{}, &ValidationError{Missing: []string{"reason"}}
	}
	var result ledger.Balance
	err := e.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, employeeID, year)
		if err != nil {
			return err
		}
		var next ledger.Balance
		if days.IsPositive() {
			next, err = ledger.Credit(bal, days)
		} else {
			next, err = ledger.Debit(bal, days.Neg())
		}
		if err != nil {
			return err
		}
		if err := s.PutBalance(ctx, next); err != nil {
			return err
		}
		result = next
		return s.AppendEntry(ctx, ledger.Entry{
			ID:         uuid.NewString(),
			EmployeeID: string(employeeID),
			Year:       year,
			Delta:      days,
			Type:       ledger.EntryAdjustment,
			Reason:     reason,
			CreatedBy:  string(actor),
			CreatedAt:  e.now(),
		})
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	e.audit(ctx, "", actor, AuditAdjusted, "", fmt.Sprintf("%s/%d: %s (%s)", employeeID, year, days, reason))
	return result, nil
}

// Grant sets up or tops up a year's entitlement, creating the balance
// record if none exists yet.
func (e *Engine) Grant(ctx context.Context, actor EmployeeID, employeeID EmployeeID, year int, days decimal.Decimal) (ledger.Balance, error) {
	var result ledger.Balance
	err := e.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, employeeID, year)
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			bal = ledger.NewBalance(string(employeeID), year, decimal.Zero)
		} else if err != nil {
			return err
		}
		next, err := ledger.Grant(bal, days)
		if err != nil {
			return err
		}
		if err := s.PutBalance(ctx, next); err != nil {
			return err
		}
		result = next
		return s.AppendEntry(ctx, ledger.Entry{
			ID:         uuid.NewString(),
			EmployeeID: string(employeeID),
			Year:       year,
			Delta:      days,
			Type:       ledger.EntryGrant,
			Reason:     fmt.Sprintf("entitlement grant for %d", year),
			CreatedBy:  string(actor),
			CreatedAt:  e.now(),
		})
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return result, nil
}

// CarryOver seeds the next year's balance from an employee's closing
// year. Refuses to run twice: an existing next-year balance with a
// carry-over already recorded stays untouched.
func (e *Engine) CarryOver(ctx context.Context, actor EmployeeID, employeeID EmployeeID, fromYear int, days decimal.Decimal) (ledger.Balance, error) {
	var result ledger.Balance
	err := e.store.WithTx(ctx, func(s Store) error {
		closing, err := s.GetBalance(ctx, employeeID, fromYear)
		if err != nil {
			return err
		}
		next, err := ledger.CarryOver(closing, days)
		if err != nil {
			return err
		}

		if existing, err := s.GetBalance(ctx, employeeID, fromYear+1); err == nil {
			if !existing.CarryoverInitial.IsZero() {
				return ledger.ErrInvalidAdjustment
			}
			existing.CarryoverInitial = next.CarryoverInitial
			existing.CarryoverRemaining = next.CarryoverRemaining
			existing.CarryoverFromYear = next.CarryoverFromYear
			next = existing
		} else if !errors.Is(err, ledger.ErrBalanceNotFound) {
			return err
		}

		if err := s.PutBalance(ctx, next); err != nil {
			return err
		}
		result = next
		return s.AppendEntry(ctx, ledger.Entry{
			ID:             uuid.NewString(),
			EmployeeID:     string(employeeID),
			Year:           fromYear + 1,
			Delta:          days,
			Type:           ledger.EntryCarryover,
			Reason:         fmt.Sprintf("carried over from %d", fromYear),
			IdempotencyKey: fmt.Sprintf("carryover:%s:%d", employeeID, fromYear),
			CreatedBy:      string(actor),
			CreatedAt:      e.now(),
		})
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return result, nil
}

// =============================================================================
// QUERIES, NOTES, RENDERING
// =============================================================================

// Get returns a request by ID.
func (e *Engine) Get(ctx context.Context, id RequestID) (*Request, error) {
	return e.store.GetRequest(ctx, id)
}

// List returns requests matching the filter.
func (e *Engine) List(ctx context.Context, f RequestFilter) ([]*Request, error) {
	return e.store.ListRequests(ctx, f)
}

// AuditTrail returns a request's full history, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, id RequestID) ([]AuditEntry, error) {
	if _, err := e.store.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListAudit(ctx, id)
}

// AddNote appends a free-text note to a request's audit trail. Notes
// never change state; they exist so a decision's context survives.
func (e *Engine) AddNote(ctx context.Context, actor EmployeeID, id RequestID, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Missing: []string{"text"}}
	}
	if _, err := e.store.GetRequest(ctx, id); err != nil {
		return err
	}
	e.audit(ctx, id, actor, AuditNoted, "", text)
	return nil
}

// RenderDocument produces the printable form of a decided request.
// Pending requests are never rendered; a half-signed document is
// worse than none.
func (e *Engine) RenderDocument(ctx context.Context, actor EmployeeID, id RequestID) (*RenderedDocument, error) {
	if e.renderer == nil {
		return nil, errors.New("no document renderer configured")
	}
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.IsTerminal() {
		return nil, ErrNotPending
	}

	requester, err := e.store.GetEmployee(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	signers := make(map[SignatureRole]Employee, len(req.Signatures))
	for _, sig := range req.Signatures {
		if emp, err := e.store.GetEmployee(ctx, sig.SignerID); err == nil {
			signers[sig.Role] = emp
		}
	}

	doc, err := e.renderer.Render(ctx, req, requester, signers)
	if err != nil {
		return nil, fmt.Errorf("render request %s: %w", req.Number, err)
	}
	e.audit(ctx, id, actor, AuditRendered, "", doc.Filename)
	return doc, nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// notifyNextApprover resolves the approver for the request's new
// stage and sends them the event. Resolution failures are logged,
// never propagated: the state change already committed.
func (e *Engine) notifyNextApprover(ctx context.Context, req *Request, typ EventType, actor EmployeeID, reason string) {
	stage, ok := req.CurrentStage()
	if !ok {
		return
	}
	recipient, err := e.resolver.Approver(ctx, req, stage, e.now())
	if err != nil {
		e.log.Warn().Err(err).
			Str("request_id", string(req.ID)).
			Str("stage", string(stage)).
			Msg("could not resolve approver for notification")
		return
	}
	e.notify(ctx, Event{Type: typ, Request: req, Recipient: recipient, ActorID: actor, Reason: reason})
}

func (e *Engine) notify(ctx context.Context, event Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Notify(ctx, event); err != nil {
		e.log.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("request_id", string(event.Request.ID)).
			Msg("notification delivery failed")
	}
}

func (e *Engine) audit(ctx context.Context, id RequestID, actor EmployeeID, action AuditAction, stage Stage, detail string) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		RequestID: id,
		ActorID:   actor,
		Action:    action,
		Stage:     stage,
		Detail:    detail,
		CreatedAt: e.now(),
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.log.Warn().Err(err).
			Str("request_id", string(id)).
			Str("action", string(action)).
			Msg("audit append failed")
	}
}
