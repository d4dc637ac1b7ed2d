package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intraflow/approval-engine/api"
	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/ledger"
	"github.com/intraflow/approval-engine/render"
	"github.com/intraflow/approval-engine/store/memory"
)

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	store  *memory.Memory
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	employees := []approval.Employee{
		{ID: "emp-1", Name: "Ada Osei", Email: "ada@example.com", Department: "engineering"},
		{ID: "head-1", Name: "Grace Mensah", Department: "engineering", Position: "Department Head"},
		{ID: "proc-1", Name: "Kofi Boateng", Department: "operations", Position: "Procurement Officer"},
		{ID: "dir-1", Name: "Yaw Darko", Position: "Director"},
	}
	for _, e := range employees {
		require.NoError(t, store.PutEmployee(ctx, e))
	}

	assignments := []approval.Assignment{
		{ID: "a-1", Stage: approval.StageDepartmentHead, Department: "engineering", ApproverID: "head-1"},
		{ID: "a-2", Stage: approval.StageProcurement, Department: "engineering", ApproverID: "proc-1"},
		{ID: "a-3", Stage: approval.StageDirector, Department: "engineering", ApproverID: "dir-1"},
	}
	for _, a := range assignments {
		require.NoError(t, store.PutAssignment(ctx, a))
	}

	b := ledger.NewBalance("emp-1", 2026, ledger.Days(21))
	require.NoError(t, store.PutBalance(ctx, b))

	resolver := &approval.Resolver{Assignments: store}
	engine := approval.NewEngine(store, resolver, nil, render.NewPDFRenderer("Intraflow"), zerolog.Nop()).
		WithClock(func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) })

	h := api.NewHandler(engine, store, zerolog.Nop())
	server := httptest.NewServer(api.NewRouter(h, nil))
	t.Cleanup(server.Close)

	return &fixture{store: store, server: server}
}

// do issues a request with an optional JSON body and acting employee.
func (f *fixture) do(t *testing.T, method, path, who string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("X-Employee-ID", who)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func leaveBody(start, end string) map[string]any {
	return map[string]any{
		"kind":         "leave",
		"requester_id": "emp-1",
		"department":   "engineering",
		"leave": map[string]any{
			"start_date":  start,
			"end_date":    end,
			"replacement": "emp-2",
		},
	}
}

// =============================================================================
// LIFECYCLE OVER HTTP
// =============================================================================

func TestLeaveLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	// Create the draft.
	resp := f.do(t, http.MethodPost, "/api/requests", "emp-1", leaveBody("2026-03-02", "2026-03-04"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)
	assert.Equal(t, "LV-2026-0001", created["number"])
	assert.Equal(t, "draft", created["status"])

	// Submit it.
	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/submit", "emp-1",
		map[string]any{"signature_ref": "sig/emp-1.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[map[string]any](t, resp)
	assert.Equal(t, "pending_department_head", submitted["status"])
	leave := submitted["leave"].(map[string]any)
	assert.Equal(t, "3", fmt.Sprint(leave["working_days"]))

	// The resolver points at the department head.
	resp = f.do(t, http.MethodGet, "/api/requests/"+id+"/approver", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approver := decode[map[string]any](t, resp)
	assert.Equal(t, "head-1", approver["approver_id"])

	// Head approves, then the director.
	for _, who := range []string{"head-1", "dir-1"} {
		resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/decide", who,
			map[string]any{"decision": "approve", "signature_ref": "sig/" + who + ".png"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp = f.do(t, http.MethodGet, "/api/requests/"+id, "", nil)
	final := decode[map[string]any](t, resp)
	assert.Equal(t, "approved", final["status"])
	assert.Len(t, final["signatures"], 3)

	// The ledger was debited exactly once.
	resp = f.do(t, http.MethodGet, "/api/employees/emp-1/balance?year=2026", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[map[string]any](t, resp)
	assert.Equal(t, "3", fmt.Sprint(balance["used_days"]))
	assert.Equal(t, "18", fmt.Sprint(balance["remaining"]))

	resp = f.do(t, http.MethodGet, "/api/employees/emp-1/entries?year=2026", "", nil)
	entries := decode[[]map[string]any](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "debit", entries[0]["type"])

	// Approved requests render as PDF.
	resp = f.do(t, http.MethodGet, "/api/requests/"+id+"/document", "emp-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	resp.Body.Close()
}

func TestRejectionOverHTTP(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/requests", "emp-1", leaveBody("2026-03-02", "2026-03-04"))
	id := decode[map[string]any](t, resp)["id"].(string)
	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/submit", "emp-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Rejecting without a reason is a client error.
	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/decide", "head-1",
		map[string]any{"decision": "reject"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/decide", "head-1",
		map[string]any{"decision": "reject", "reason": "headcount freeze"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decode[map[string]any](t, resp)
	assert.Equal(t, "rejected", rejected["status"])
	assert.Equal(t, "headcount freeze", rejected["rejection_reason"])

	// Balance stays untouched.
	resp = f.do(t, http.MethodGet, "/api/employees/emp-1/balance?year=2026", "", nil)
	balance := decode[map[string]any](t, resp)
	assert.Equal(t, "0", fmt.Sprint(balance["used_days"]))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorStatusMapping(t *testing.T) {
	f := newFixture(t)

	// Unknown request.
	resp := f.do(t, http.MethodGet, "/api/requests/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Missing identity header.
	resp = f.do(t, http.MethodPost, "/api/requests/nope/submit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/requests", "emp-1", leaveBody("2026-03-02", "2026-03-04"))
	id := decode[map[string]any](t, resp)["id"].(string)

	// Draft not yet pending: no approver, no decisions.
	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/decide", "head-1",
		map[string]any{"decision": "approve", "signature_ref": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Only the owner deletes a draft.
	resp = f.do(t, http.MethodDelete, "/api/requests/"+id, "head-1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/submit", "emp-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Wrong approver for the current stage.
	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/decide", "dir-1",
		map[string]any{"decision": "approve", "signature_ref": "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Pending requests render no document yet.
	resp = f.do(t, http.MethodGet, "/api/requests/"+id+"/document", "emp-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Validation failure: missing leave dates.
	resp = f.do(t, http.MethodPost, "/api/requests", "emp-1", map[string]any{
		"kind": "leave", "requester_id": "emp-1", "department": "engineering",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestInsufficientBalanceIsBadRequest(t *testing.T) {
	f := newFixture(t)

	// 30 working days against a 21 day entitlement.
	resp := f.do(t, http.MethodPost, "/api/requests", "emp-1", leaveBody("2026-03-02", "2026-04-10"))
	id := decode[map[string]any](t, resp)["id"].(string)

	resp = f.do(t, http.MethodPost, "/api/requests/"+id+"/submit", "emp-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Contains(t, body["details"], "insufficient")
}

// =============================================================================
// CALENDAR + ADMIN
// =============================================================================

func TestWorkdaysPreview(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/admin/holidays", "admin-1",
		map[string]any{"date": "2026-03-03", "name": "Founders' Day"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/workdays?start=2026-03-02&end=2026-03-08", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	// Mon-Fri minus one holiday.
	assert.Equal(t, float64(4), got["working_days"])
}

func TestWorkdaysReversedRangeIsBadRequest(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/workdays?start=2026-03-08&end=2026-03-02", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Contains(t, body["details"], "end before start")
}

func TestCreateAssignmentValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing stage", map[string]any{
			"department": "finance", "approver_id": "head-9",
		}},
		{"missing approver", map[string]any{
			"stage": "department_head", "department": "finance",
		}},
		{"no scope", map[string]any{
			"stage": "department_head", "approver_id": "head-9",
		}},
		{"both scopes", map[string]any{
			"stage": "department_head", "approver_id": "head-9",
			"employee_id": "emp-1", "department": "finance",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/admin/assignments", "admin-1", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}

	resp := f.do(t, http.MethodPost, "/api/admin/assignments", "admin-1", map[string]any{
		"stage": "department_head", "department": "finance", "approver_id": "head-9",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminBalanceEndpoints(t *testing.T) {
	f := newFixture(t)

	// Debit first; credits only restore days that were debited before.
	resp := f.do(t, http.MethodPost, "/api/admin/adjustments", "admin-1", map[string]any{
		"employee_id": "emp-1", "year": 2026, "days": "-3", "reason": "unpaid absence",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[map[string]any](t, resp)
	assert.Equal(t, "18", fmt.Sprint(balance["remaining"]))

	resp = f.do(t, http.MethodPost, "/api/admin/adjustments", "admin-1", map[string]any{
		"employee_id": "emp-1", "year": 2026, "days": "2", "reason": "absence shortened",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance = decode[map[string]any](t, resp)
	assert.Equal(t, "20", fmt.Sprint(balance["remaining"]))

	// Crediting more than was ever debited is rejected; extra
	// entitlement goes through grants instead.
	resp = f.do(t, http.MethodPost, "/api/admin/adjustments", "admin-1", map[string]any{
		"employee_id": "emp-1", "year": 2026, "days": "5", "reason": "typo",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Adjustments need a reason.
	resp = f.do(t, http.MethodPost, "/api/admin/adjustments", "admin-1", map[string]any{
		"employee_id": "emp-1", "year": 2026, "days": "1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/admin/carryover", "admin-1", map[string]any{
		"employee_id": "emp-1", "from_year": 2026, "days": "5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[map[string]any](t, resp)
	assert.Equal(t, float64(2027), next["year"])
	assert.Equal(t, "5", fmt.Sprint(next["carryover_remaining"]))
}

func TestBalanceReportDownload(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/reports/balances.xlsx?year=2026", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "balances-2026.xlsx")
}
