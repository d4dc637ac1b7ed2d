package approval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
	"github.com/intraflow/approval-engine/store/memory"
)

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	store *memory.Memory
	eng   *approval.Engine
	ctx   context.Context
}

// newFixture wires a memory store with one engineering employee
// (21-day entitlement, 5 used), the full approval chain, and a
// fixed clock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	employees := []approval.Employee{
		{ID: "emp-1", Name: "Ada Osei", Department: "engineering"},
		{ID: "head-1", Name: "Femi Bello", Department: "engineering", Position: "Department Head"},
		{ID: "proc-1", Name: "Nadia Haddad", Department: "procurement", Position: "Procurement Officer"},
		{ID: "dir-1", Name: "Tomás Rivera", Position: "Director"},
	}
	for _, e := range employees {
		require.NoError(t, store.PutEmployee(ctx, e))
	}

	assignments := []approval.Assignment{
		{ID: "a1", Stage: approval.StageDepartmentHead, Department: "engineering", ApproverID: "head-1"},
		{ID: "a2", Stage: approval.StageProcurement, Department: "engineering", ApproverID: "proc-1"},
		{ID: "a3", Stage: approval.StageDirector, Department: "engineering", ApproverID: "dir-1"},
	}
	for _, a := range assignments {
		require.NoError(t, store.PutAssignment(ctx, a))
	}

	bal := ledger.NewBalance("emp-1", 2026, ledger.Days(21))
	bal.UsedDays = ledger.Days(5)
	require.NoError(t, store.PutBalance(ctx, bal))

	resolver := &approval.Resolver{Assignments: store}
	eng := approval.NewEngine(store, resolver, nil, nil, zerolog.Nop()).
		WithClock(func() time.Time {
			return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
		})
	return &fixture{store: store, eng: eng, ctx: ctx}
}

func sigOf(id approval.EmployeeID) approval.Signature {
	return approval.Signature{SignerID: id, BlobRef: "sig/" + string(id) + ".png"}
}

// leaveDraft creates and returns a draft for emp-1.
// 2026-03-02 is a Monday; Mon..Wed is 3 working days.
func (f *fixture) leaveDraft(t *testing.T, start, end string) *approval.Request {
	t.Helper()
	req, err := f.eng.CreateDraft(f.ctx, &approval.Request{
		Kind:        approval.KindLeave,
		RequesterID: "emp-1",
		Department:  "engineering",
		Leave: &approval.LeaveDetails{
			StartDate:   calendar.MustParseDate(start),
			EndDate:     calendar.MustParseDate(end),
			Replacement: "emp-2",
		},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) submitted(t *testing.T, start, end string) *approval.Request {
	t.Helper()
	draft := f.leaveDraft(t, start, end)
	req, err := f.eng.Submit(f.ctx, "emp-1", draft.ID, sigOf("emp-1"))
	require.NoError(t, err)
	return req
}

// =============================================================================
// DRAFT LIFECYCLE
// =============================================================================

func TestCreateDraft_AllocatesNumberAndStatus(t *testing.T) {
	f := newFixture(t)
	req := f.leaveDraft(t, "2026-03-02", "2026-03-04")

	assert.Equal(t, approval.StatusDraft, req.Status)
	assert.Equal(t, "LV-2026-0001", req.Number)
	assert.NotEmpty(t, req.ID)

	second := f.leaveDraft(t, "2026-04-06", "2026-04-07")
	assert.Equal(t, "LV-2026-0002", second.Number)
}

func TestCreateDraft_RejectsIncompleteRequests(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.CreateDraft(f.ctx, &approval.Request{
		Kind:        approval.KindLeave,
		RequesterID: "emp-1",
		Department:  "engineering",
	})
	var verr *approval.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Missing, "leave")
}

func TestDeleteDraft_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	req := f.leaveDraft(t, "2026-03-02", "2026-03-04")

	assert.ErrorIs(t, f.eng.DeleteDraft(f.ctx, "head-1", req.ID), approval.ErrNotOwner)
	require.NoError(t, f.eng.DeleteDraft(f.ctx, "emp-1", req.ID))

	_, err := f.eng.Get(f.ctx, req.ID)
	assert.ErrorIs(t, err, approval.ErrNotFound)
}

func TestDeleteDraft_SubmittedRequestsAreImmortal(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")
	assert.ErrorIs(t, f.eng.DeleteDraft(f.ctx, "emp-1", req.ID), approval.ErrNotDraft)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_PricesLeaveAndEntersChain(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	assert.Equal(t, approval.StatusPendingDepartmentHead, req.Status)
	assert.True(t, req.Leave.WorkingDays.Equal(ledger.Days(3)), "Mon..Wed = 3 working days")
	assert.True(t, req.HasSignature(approval.SignatureRequester))

	// Submission alone must not touch the balance.
	bal, err := f.eng.Balance(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(5)))
}

func TestSubmit_HolidaysReduceTheCost(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutHoliday(f.ctx, calendar.Holiday{
		ID: "h1", Date: calendar.MustParseDate("2026-03-03"), Name: "Founders Day",
	}))

	req := f.submitted(t, "2026-03-02", "2026-03-04")
	assert.True(t, req.Leave.WorkingDays.Equal(ledger.Days(2)))
}

func TestSubmit_InsufficientBalanceFailsEarly(t *testing.T) {
	f := newFixture(t)
	// Four full weeks = 20 working days, against 16 remaining.
	draft := f.leaveDraft(t, "2026-03-02", "2026-03-27")

	_, err := f.eng.Submit(f.ctx, "emp-1", draft.ID, sigOf("emp-1"))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	var detail *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &detail)
	assert.True(t, detail.Shortfall.Equal(ledger.Days(4)))

	got, err := f.eng.Get(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusDraft, got.Status, "failed submission leaves the draft intact")
}

func TestSubmit_RejectsWeekendOnlySpans(t *testing.T) {
	f := newFixture(t)
	draft := f.leaveDraft(t, "2026-03-07", "2026-03-08") // Sat..Sun

	_, err := f.eng.Submit(f.ctx, "emp-1", draft.ID, sigOf("emp-1"))
	var verr *approval.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmit_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	draft := f.leaveDraft(t, "2026-03-02", "2026-03-04")

	_, err := f.eng.Submit(f.ctx, "head-1", draft.ID, sigOf("head-1"))
	assert.ErrorIs(t, err, approval.ErrNotOwner)
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestDecide_FullLeaveLifecycle(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	req, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, sigOf("head-1"), "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingDirector, req.Status)

	req, err = f.eng.Decide(f.ctx, "dir-1", req.ID, approval.DecisionApprove, sigOf("dir-1"), "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)
	require.NotNil(t, req.DecidedAt)
	assert.True(t, req.HasSignature(approval.SignatureDepartmentHead))
	assert.True(t, req.HasSignature(approval.SignatureDirector))

	// The final approval debits exactly once.
	bal, err := f.eng.Balance(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(8)), "used: %s", bal.UsedDays)
	assert.True(t, bal.Remaining().Equal(ledger.Days(13)), "remaining: %s", bal.Remaining())

	entries, err := f.eng.Entries(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryDebit, entries[0].Type)
	assert.True(t, entries[0].Delta.Equal(ledger.Days(3).Neg()))
	assert.Equal(t, string(req.ID), entries[0].RequestID)
}

func TestDecide_NoStageSkipping(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	// The director cannot act while the department head is up.
	_, err := f.eng.Decide(f.ctx, "dir-1", req.ID, approval.DecisionApprove, sigOf("dir-1"), "")
	assert.ErrorIs(t, err, approval.ErrUnauthorizedApprover)
}

func TestDecide_UnauthorizedActor(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	_, err := f.eng.Decide(f.ctx, "emp-1", req.ID, approval.DecisionApprove, sigOf("emp-1"), "")
	assert.ErrorIs(t, err, approval.ErrUnauthorizedApprover)
}

func TestDecide_ApprovalRequiresSignature(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	_, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, approval.Signature{}, "")
	assert.ErrorIs(t, err, approval.ErrMissingSignature)
}

func TestDecide_RejectionRequiresReason(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	_, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionReject, approval.Signature{}, "  ")
	assert.ErrorIs(t, err, approval.ErrRejectionReasonRequired)
}

func TestDecide_RejectionLeavesBalanceUntouched(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	req, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionReject, approval.Signature{}, "coverage gap that week")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejected, req.Status)
	assert.Equal(t, "coverage gap that week", req.RejectionReason)

	bal, err := f.eng.Balance(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(5)))

	entries, err := f.eng.Entries(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecide_TerminalStatesAreImmutable(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")

	_, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionReject, approval.Signature{}, "no")
	require.NoError(t, err)

	_, err = f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, sigOf("head-1"), "")
	assert.ErrorIs(t, err, approval.ErrTerminalState)

	_, err = f.eng.Decide(f.ctx, "dir-1", req.ID, approval.DecisionReject, approval.Signature{}, "also no")
	assert.ErrorIs(t, err, approval.ErrTerminalState)
}

func TestDecide_ProcurementWalksThreeStages(t *testing.T) {
	f := newFixture(t)
	draft, err := f.eng.CreateDraft(f.ctx, &approval.Request{
		Kind:        approval.KindProcurement,
		RequesterID: "emp-1",
		Department:  "engineering",
		Procurement: &approval.ProcurementDetails{
			Category: "equipment",
			Urgency:  "normal",
			Items: []approval.ProcurementItem{
				{Name: "Laptop", Quantity: decimal.NewFromInt(2), Unit: "pcs", UnitPrice: decimal.NewFromInt(1200)},
				{Name: "Dock", Quantity: decimal.NewFromInt(2), Unit: "pcs", UnitPrice: decimal.NewFromInt(150)},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PR-2026-0001", draft.Number)
	assert.True(t, draft.Procurement.EstimatedValue.Equal(decimal.NewFromInt(2700)))

	req, err := f.eng.Submit(f.ctx, "emp-1", draft.ID, sigOf("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingDepartmentHead, req.Status)

	req, err = f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, sigOf("head-1"), "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingProcurement, req.Status)

	req, err = f.eng.Decide(f.ctx, "proc-1", req.ID, approval.DecisionApprove, sigOf("proc-1"), "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingDirector, req.Status)

	req, err = f.eng.Decide(f.ctx, "dir-1", req.ID, approval.DecisionApprove, sigOf("dir-1"), "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)

	// Procurement approvals never touch the leave ledger.
	bal, err := f.eng.Balance(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(5)))
}

// =============================================================================
// CONCURRENCY - One winner, one debit
// =============================================================================

func TestDecide_ConcurrentFinalApprovalDebitsOnce(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")
	_, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, sigOf("head-1"), "")
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.Decide(f.ctx, "dir-1", req.ID, approval.DecisionApprove, sigOf("dir-1"), "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		losses++
		assert.True(t,
			errors.Is(err, approval.ErrConcurrentModification) || errors.Is(err, approval.ErrTerminalState),
			"unexpected race loser error: %v", err)
	}
	assert.Equal(t, 1, wins, "exactly one racer lands the approval")
	assert.Equal(t, racers-1, losses)

	bal, err := f.eng.Balance(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(8)), "debited exactly once: %s", bal.UsedDays)

	entries, err := f.eng.Entries(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// LEDGER OPERATIONS VIA THE ENGINE
// =============================================================================

func TestAdjust_CreditsAndDebits(t *testing.T) {
	f := newFixture(t)

	bal, err := f.eng.Adjust(f.ctx, "admin-1", "emp-1", 2026, ledger.Days(2), "credited after cancelled trip")
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(3)))

	bal, err = f.eng.Adjust(f.ctx, "admin-1", "emp-1", 2026, ledger.Days(1).Neg(), "correction")
	require.NoError(t, err)
	assert.True(t, bal.UsedDays.Equal(ledger.Days(4)))

	_, err = f.eng.Adjust(f.ctx, "admin-1", "emp-1", 2026, ledger.Days(2), "")
	var verr *approval.ValidationError
	assert.ErrorAs(t, err, &verr, "adjustments need a reason")

	entries, err := f.eng.Entries(f.ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCarryOver_SeedsNextYearOnce(t *testing.T) {
	f := newFixture(t)

	next, err := f.eng.CarryOver(f.ctx, "admin-1", "emp-1", 2026, ledger.Days(5))
	require.NoError(t, err)
	assert.Equal(t, 2027, next.Year)
	assert.True(t, next.CarryoverRemaining.Equal(ledger.Days(5)))

	_, err = f.eng.CarryOver(f.ctx, "admin-1", "emp-1", 2026, ledger.Days(5))
	assert.ErrorIs(t, err, ledger.ErrInvalidAdjustment, "a second carry-over must not run")

	granted, err := f.eng.Grant(f.ctx, "admin-1", "emp-1", 2027, ledger.Days(21))
	require.NoError(t, err)
	assert.True(t, granted.Remaining().Equal(ledger.Days(26)))
}

// =============================================================================
// AUDIT + NOTES
// =============================================================================

func TestAuditTrail_RecordsTheWholeStory(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "2026-03-02", "2026-03-04")
	_, err := f.eng.Decide(f.ctx, "head-1", req.ID, approval.DecisionApprove, sigOf("head-1"), "")
	require.NoError(t, err)
	require.NoError(t, f.eng.AddNote(f.ctx, "head-1", req.ID, "replacement confirmed"))

	trail, err := f.eng.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)

	var actions []approval.AuditAction
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []approval.AuditAction{
		approval.AuditCreated,
		approval.AuditSubmitted,
		approval.AuditApproved,
		approval.AuditNoted,
	}, actions)
}
