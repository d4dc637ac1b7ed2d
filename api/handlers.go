/*
handlers.go - HTTP handlers for the approval engine

PURPOSE:
  Translates HTTP requests into engine calls and engine results into
  JSON. No business rules live here; everything interesting happens
  in the approval package.

IDENTITY:
  The acting employee comes from the X-Employee-ID header, set by the
  reverse proxy after authentication. Handlers that act on behalf of
  someone (submit, decide, delete) reject requests without it.

ERROR MAPPING:
  404  not found
  403  not the owner / not the resolved approver
  409  lost CAS race, terminal state, not a draft
  400  validation, insufficient balance, missing reason/signature
  500  everything else

SEE ALSO:
  - dto.go: the wire shapes
  - server.go: routes
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
	"github.com/intraflow/approval-engine/report"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds the dependencies of every endpoint.
type Handler struct {
	Engine *approval.Engine
	Store  approval.TxStore
	Log    zerolog.Logger
}

func NewHandler(engine *approval.Engine, store approval.TxStore, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, Store: store, Log: log}
}

// actor extracts the acting employee from the request. Empty means
// the proxy did not authenticate anyone.
func actor(r *http.Request) approval.EmployeeID {
	return approval.EmployeeID(r.Header.Get("X-Employee-ID"))
}

func requireActor(w http.ResponseWriter, r *http.Request) (approval.EmployeeID, bool) {
	id := actor(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "X-Employee-ID header required", nil)
		return "", false
	}
	return id, true
}

// =============================================================================
// REQUEST ENDPOINTS
// =============================================================================

// CreateRequest creates a draft.
// POST /api/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var dto CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	req, err := fromCreateDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	created, err := h.Engine.CreateDraft(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

func fromCreateDTO(dto CreateRequestDTO) (*approval.Request, error) {
	req := &approval.Request{
		Kind:        approval.Kind(dto.Kind),
		RequesterID: approval.EmployeeID(dto.RequesterID),
		Department:  approval.Department(dto.Department),
	}
	if dto.Leave != nil {
		start, err := calendar.ParseDate(dto.Leave.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := calendar.ParseDate(dto.Leave.EndDate)
		if err != nil {
			return nil, err
		}
		req.Leave = &approval.LeaveDetails{
			StartDate:   start,
			EndDate:     end,
			Replacement: approval.EmployeeID(dto.Leave.Replacement),
		}
	}
	if dto.Procurement != nil {
		p := &approval.ProcurementDetails{
			Category: dto.Procurement.Category,
			Urgency:  dto.Procurement.Urgency,
		}
		for _, item := range dto.Procurement.Items {
			p.Items = append(p.Items, approval.ProcurementItem{
				Name:      item.Name,
				Quantity:  item.Quantity,
				Unit:      item.Unit,
				UnitPrice: item.UnitPrice,
			})
		}
		req.Procurement = p
	}
	if dto.Document != nil {
		req.Document = &approval.DocumentDetails{Title: dto.Document.Title, Body: dto.Document.Body}
	}
	return req, nil
}

// GetRequest returns one request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.Get(r.Context(), approval.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests returns requests matching the query filters.
// GET /api/requests?requester=&department=&kind=&status=&number=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.Engine.List(r.Context(), approval.RequestFilter{
		RequesterID: approval.EmployeeID(q.Get("requester")),
		Department:  approval.Department(q.Get("department")),
		Kind:        approval.Kind(q.Get("kind")),
		Status:      approval.Status(q.Get("status")),
		Number:      q.Get("number"),
	})
	if err != nil {
		h.writeEngineError(w, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, 0, len(reqs))
	for _, req := range reqs {
		dtos = append(dtos, toRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateRequest rewrites a draft's payload.
// PUT /api/requests/{id}
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	req, err := fromCreateDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	req.ID = approval.RequestID(chi.URLParam(r, "id"))

	updated, err := h.Engine.UpdateDraft(r.Context(), who, req)
	if err != nil {
		h.writeEngineError(w, "Failed to update request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// DeleteRequest removes a draft.
// DELETE /api/requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteDraft(r.Context(), who, approval.RequestID(chi.URLParam(r, "id"))); err != nil {
		h.writeEngineError(w, "Failed to delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitRequest moves a draft into the approval chain.
// POST /api/requests/{id}/submit
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	// The body is optional; submitting without a signature blob is fine.
	var dto SubmitDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	req, err := h.Engine.Submit(r.Context(), who, approval.RequestID(chi.URLParam(r, "id")),
		approval.Signature{SignerID: who, BlobRef: dto.SignatureRef})
	if err != nil {
		h.writeEngineError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DecideRequest records an approval or rejection.
// POST /api/requests/{id}/decide
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto DecideDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	req, err := h.Engine.Decide(r.Context(), who, approval.RequestID(chi.URLParam(r, "id")),
		approval.Decision(dto.Decision),
		approval.Signature{SignerID: who, BlobRef: dto.SignatureRef},
		dto.Reason)
	if err != nil {
		h.writeEngineError(w, "Failed to decide request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// GetApprover returns who currently has to act.
// GET /api/requests/{id}/approver
func (h *Handler) GetApprover(w http.ResponseWriter, r *http.Request) {
	id, err := h.Engine.ApproverFor(r.Context(), approval.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to resolve approver", err)
		return
	}
	writeJSON(w, http.StatusOK, ApproverDTO{ApproverID: string(id)})
}

// AddNote appends a note to the audit trail.
// POST /api/requests/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto NoteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if err := h.Engine.AddNote(r.Context(), who, approval.RequestID(chi.URLParam(r, "id")), dto.Text); err != nil {
		h.writeEngineError(w, "Failed to add note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuditTrail returns the request history.
// GET /api/requests/{id}/audit
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.Engine.AuditTrail(r.Context(), approval.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get audit trail", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(trail))
	for _, e := range trail {
		dtos = append(dtos, AuditEntryDTO{
			ActorID:   string(e.ActorID),
			Action:    string(e.Action),
			Stage:     string(e.Stage),
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDocument streams the printable PDF of a decided request.
// GET /api/requests/{id}/document
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	doc, err := h.Engine.RenderDocument(r.Context(), who, approval.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to render document", err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetBalance returns an employee's balance for a year.
// GET /api/employees/{id}/balance?year=2026
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	b, err := h.Engine.Balance(r.Context(), approval.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		h.writeEngineError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// GetEntries returns an employee's ledger history for a year.
// GET /api/employees/{id}/entries?year=2026
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	entries, err := h.Engine.Entries(r.Context(), approval.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		h.writeEngineError(w, "Failed to get entries", err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Store.GetEmployee(r.Context(), approval.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

// CreateEmployee upserts an employee record.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var dto EmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if dto.ID == "" || dto.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	e := approval.Employee{
		ID:         approval.EmployeeID(dto.ID),
		Name:       dto.Name,
		Email:      dto.Email,
		Department: approval.Department(dto.Department),
		Position:   dto.Position,
	}
	if dto.HireDate != "" {
		d, err := calendar.ParseDate(dto.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date", err)
			return
		}
		e.HireDate = d.Time()
	}
	if err := h.Store.PutEmployee(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(e))
}

func toEmployeeDTO(e approval.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Department: string(e.Department),
		Position:   e.Position,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.Format("2006-01-02")
	}
	return dto
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// CreateAdjustment applies a manual balance correction.
// POST /api/admin/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto AdjustmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	b, err := h.Engine.Adjust(r.Context(), who, approval.EmployeeID(dto.EmployeeID), dto.Year, dto.Days, dto.Reason)
	if err != nil {
		h.writeEngineError(w, "Failed to adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// CreateGrant sets up or tops up a year's entitlement.
// POST /api/admin/grants
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto GrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	b, err := h.Engine.Grant(r.Context(), who, approval.EmployeeID(dto.EmployeeID), dto.Year, dto.Days)
	if err != nil {
		h.writeEngineError(w, "Failed to grant entitlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// TriggerCarryOver seeds the next year's balance.
// POST /api/admin/carryover
func (h *Handler) TriggerCarryOver(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var dto CarryOverDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	b, err := h.Engine.CarryOver(r.Context(), who, approval.EmployeeID(dto.EmployeeID), dto.FromYear, dto.Days)
	if err != nil {
		h.writeEngineError(w, "Failed to carry over", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// CreateAssignment configures who approves at a stage.
// POST /api/admin/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var dto AssignmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if dto.Stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required", nil)
		return
	}
	if dto.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required", nil)
		return
	}
	// Scoped to one employee or one department, never both or neither.
	if (dto.EmployeeID == "") == (dto.Department == "") {
		writeError(w, http.StatusBadRequest, "exactly one of employee_id or department must be set", nil)
		return
	}
	a := approval.Assignment{
		ID:         dto.ID,
		Stage:      approval.Stage(dto.Stage),
		EmployeeID: approval.EmployeeID(dto.EmployeeID),
		Department: approval.Department(dto.Department),
		ApproverID: approval.EmployeeID(dto.ApproverID),
		DelegateID: approval.EmployeeID(dto.DelegateID),
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if dto.DelegationStart != "" {
		t, err := time.Parse(time.RFC3339, dto.DelegationStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid delegation_start", err)
			return
		}
		a.DelegationStart = &t
	}
	if dto.DelegationEnd != "" {
		t, err := time.Parse(time.RFC3339, dto.DelegationEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid delegation_end", err)
			return
		}
		a.DelegationEnd = &t
	}
	if err := h.Store.PutAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	dto.ID = a.ID
	writeJSON(w, http.StatusCreated, dto)
}

// ListAssignments returns the configured approval chain.
// GET /api/admin/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Store.ListAssignments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dto := AssignmentDTO{
			ID:         a.ID,
			Stage:      string(a.Stage),
			EmployeeID: string(a.EmployeeID),
			Department: string(a.Department),
			ApproverID: string(a.ApproverID),
			DelegateID: string(a.DelegateID),
		}
		if a.DelegationStart != nil {
			dto.DelegationStart = a.DelegationStart.Format(time.RFC3339)
		}
		if a.DelegationEnd != nil {
			dto.DelegationEnd = a.DelegationEnd.Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteAssignment removes a chain entry.
// DELETE /api/admin/assignments/{id}
func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAssignment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, "Failed to delete assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateHoliday adds a holiday to the calendar.
// POST /api/admin/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var dto HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	d, err := calendar.ParseDate(dto.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	holiday := calendar.Holiday{ID: dto.ID, Date: d, Name: dto.Name, Recurring: dto.Recurring}
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if err := h.Store.PutHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	dto.ID = holiday.ID
	writeJSON(w, http.StatusCreated, dto)
}

// ListHolidays returns the holiday calendar.
// GET /api/admin/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, holiday := range holidays {
		dtos = append(dtos, HolidayDTO{
			ID:        holiday.ID,
			Date:      holiday.Date.String(),
			Name:      holiday.Name,
			Recurring: holiday.Recurring,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteHoliday removes a holiday.
// DELETE /api/admin/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CALENDAR + REPORT ENDPOINTS
// =============================================================================

// GetWorkdays prices a date span without creating anything.
// GET /api/workdays?start=2026-03-02&end=2026-03-04
func (h *Handler) GetWorkdays(w http.ResponseWriter, r *http.Request) {
	start, err := calendar.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}
	end, err := calendar.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end", err)
		return
	}
	n, err := h.Engine.WorkingDaysBetween(r.Context(), start, end)
	if err != nil {
		h.writeEngineError(w, "Failed to count working days", err)
		return
	}
	writeJSON(w, http.StatusOK, WorkdaysDTO{Start: start.String(), End: end.String(), WorkingDays: n})
}

// GetBalanceReport streams the year's balances as XLSX.
// GET /api/reports/balances.xlsx?year=2026
func (h *Handler) GetBalanceReport(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	balances, err := h.Store.ListBalances(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	byID := make(map[approval.EmployeeID]approval.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	data, err := report.BalanceReport(year, balances, byID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="balances-`+strconv.Itoa(year)+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// =============================================================================
// HELPERS
// =============================================================================

func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors onto HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound),
		errors.Is(err, ledger.ErrBalanceNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, approval.ErrNotOwner),
		errors.Is(err, approval.ErrUnauthorizedApprover):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, approval.ErrConcurrentModification),
		errors.Is(err, approval.ErrTerminalState),
		errors.Is(err, approval.ErrNotDraft),
		errors.Is(err, approval.ErrNotPending):
		writeError(w, http.StatusConflict, message, err)
	case approval.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
