/*
Package memory is the in-memory store implementation.

PURPOSE:
  Backs tests and small single-process deployments. Implements the
  full approval.TxStore contract with a single mutex; WithTx holds the
  lock for the duration of the transaction function and rolls back to
  a snapshot on error, so transactional semantics match the SQLite
  store exactly.

SEE ALSO:
  - approval/store.go: the contracts implemented here
  - store/sqlite: the durable implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type balanceKey struct {
	EmployeeID approval.EmployeeID
	Year       int
}

type Memory struct {
	mu sync.RWMutex

	requests    map[approval.RequestID]*approval.Request
	seq         map[string]int // request number sequences, keyed kind-year
	balances    map[balanceKey]ledger.Balance
	entries     []ledger.Entry
	entryKeys   map[string]bool // idempotency keys already written
	assignments map[string]approval.Assignment
	holidays    map[string]calendar.Holiday
	employees   map[approval.EmployeeID]approval.Employee
	audit       []approval.AuditEntry
}

func New() *Memory {
	return &Memory{
		requests:    make(map[approval.RequestID]*approval.Request),
		seq:         make(map[string]int),
		balances:    make(map[balanceKey]ledger.Balance),
		entryKeys:   make(map[string]bool),
		assignments: make(map[string]approval.Assignment),
		holidays:    make(map[string]calendar.Holiday),
		employees:   make(map[approval.EmployeeID]approval.Employee),
	}
}

// cloneRequest copies a request so callers never alias stored state.
func cloneRequest(r *approval.Request) *approval.Request {
	c := *r
	c.Signatures = append([]approval.Signature(nil), r.Signatures...)
	if r.Leave != nil {
		l := *r.Leave
		c.Leave = &l
	}
	if r.Procurement != nil {
		p := *r.Procurement
		p.Items = append([]approval.ProcurementItem(nil), r.Procurement.Items...)
		c.Procurement = &p
	}
	if r.Document != nil {
		d := *r.Document
		c.Document = &d
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r *approval.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRequestLocked(r)
}

func (m *Memory) createRequestLocked(r *approval.Request) error {
	if _, exists := m.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id approval.RequestID) (*approval.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) getRequestLocked(id approval.RequestID) (*approval.Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (m *Memory) ListRequests(_ context.Context, f approval.RequestFilter) ([]*approval.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(f)
}

func (m *Memory) listRequestsLocked(f approval.RequestFilter) ([]*approval.Request, error) {
	var result []*approval.Request
	for _, r := range m.requests {
		if f.RequesterID != "" && r.RequesterID != f.RequesterID {
			continue
		}
		if f.Department != "" && r.Department != f.Department {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Number != "" && r.Number != f.Number {
			continue
		}
		result = append(result, cloneRequest(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdateRequest(_ context.Context, r *approval.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Memory) updateRequestLocked(r *approval.Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return approval.ErrNotFound
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, r *approval.Request, expected approval.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestStatusLocked(r, expected)
}

func (m *Memory) updateRequestStatusLocked(r *approval.Request, expected approval.Status) error {
	stored, ok := m.requests[r.ID]
	if !ok {
		return approval.ErrNotFound
	}
	if stored.Status != expected {
		return approval.ErrConcurrentModification
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *Memory) DeleteRequest(_ context.Context, id approval.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRequestLocked(id)
}

func (m *Memory) deleteRequestLocked(id approval.RequestID) error {
	if _, ok := m.requests[id]; !ok {
		return approval.ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *Memory) NextRequestNumber(_ context.Context, kind approval.Kind, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextRequestNumberLocked(kind, year)
}

func (m *Memory) nextRequestNumberLocked(kind approval.Kind, year int) (string, error) {
	key := fmt.Sprintf("%s-%d", kind.NumberPrefix(), year)
	m.seq[key]++
	return fmt.Sprintf("%s-%04d", key, m.seq[key]), nil
}

// =============================================================================
// BALANCES + ENTRIES
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(employeeID, year)
}

func (m *Memory) getBalanceLocked(employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	b, ok := m.balances[balanceKey{employeeID, year}]
	if !ok {
		return ledger.Balance{}, ledger.ErrBalanceNotFound
	}
	return b, nil
}

func (m *Memory) PutBalance(_ context.Context, b ledger.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBalanceLocked(b)
}

func (m *Memory) putBalanceLocked(b ledger.Balance) error {
	m.balances[balanceKey{approval.EmployeeID(b.EmployeeID), b.Year}] = b
	return nil
}

func (m *Memory) ListBalances(_ context.Context, year int) ([]ledger.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBalancesLocked(year)
}

func (m *Memory) listBalancesLocked(year int) ([]ledger.Balance, error) {
	var result []ledger.Balance
	for k, b := range m.balances {
		if k.Year == year {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result, nil
}

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(e)
}

func (m *Memory) appendEntryLocked(e ledger.Entry) error {
	if e.IdempotencyKey != "" {
		if m.entryKeys[e.IdempotencyKey] {
			return nil
		}
		m.entryKeys[e.IdempotencyKey] = true
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) ListEntries(_ context.Context, employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(employeeID, year)
}

func (m *Memory) listEntriesLocked(employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	var result []ledger.Entry
	for _, e := range m.entries {
		if e.EmployeeID == string(employeeID) && e.Year == year {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// ASSIGNMENTS, HOLIDAYS, EMPLOYEES
// =============================================================================

func (m *Memory) PutAssignment(_ context.Context, a approval.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) DeleteAssignment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return approval.ErrNotFound
	}
	delete(m.assignments, id)
	return nil
}

func (m *Memory) ListAssignments(_ context.Context) ([]approval.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]approval.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) FindAssignmentForEmployee(_ context.Context, stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findAssignmentForEmployeeLocked(stage, employeeID)
}

func (m *Memory) findAssignmentForEmployeeLocked(stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	for _, a := range m.assignments {
		if a.Stage == stage && a.EmployeeID == employeeID && a.EmployeeID != "" {
			return a, nil
		}
	}
	return approval.Assignment{}, approval.ErrNotFound
}

func (m *Memory) FindAssignmentForDepartment(_ context.Context, stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findAssignmentForDepartmentLocked(stage, dept)
}

func (m *Memory) findAssignmentForDepartmentLocked(stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	for _, a := range m.assignments {
		if a.Stage == stage && a.Department == dept && a.Department != "" && a.EmployeeID == "" {
			return a, nil
		}
	}
	return approval.Assignment{}, approval.ErrNotFound
}

func (m *Memory) PutHoliday(_ context.Context, h calendar.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidays[id]; !ok {
		return approval.ErrNotFound
	}
	delete(m.holidays, id)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]calendar.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listHolidaysLocked()
}

func (m *Memory) listHolidaysLocked() ([]calendar.Holiday, error) {
	result := make([]calendar.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) PutEmployee(_ context.Context, e approval.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id approval.EmployeeID) (approval.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Memory) getEmployeeLocked(id approval.EmployeeID) (approval.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return approval.Employee{}, approval.ErrNotFound
	}
	return e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]approval.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]approval.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e approval.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAuditLocked(e)
}

func (m *Memory) appendAuditLocked(e approval.AuditEntry) error {
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, requestID approval.RequestID) ([]approval.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []approval.AuditEntry
	for _, e := range m.audit {
		if e.RequestID == requestID {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback under the store lock
// =============================================================================

// WithTx executes fn against a view of the store while holding the
// write lock, so nothing else observes intermediate state. On error
// the pre-transaction snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(approval.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests    map[approval.RequestID]*approval.Request
	seq         map[string]int
	balances    map[balanceKey]ledger.Balance
	entries     []ledger.Entry
	entryKeys   map[string]bool
	assignments map[string]approval.Assignment
	holidays    map[string]calendar.Holiday
	employees   map[approval.EmployeeID]approval.Employee
	audit       []approval.AuditEntry
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		requests:    make(map[approval.RequestID]*approval.Request, len(m.requests)),
		seq:         make(map[string]int, len(m.seq)),
		balances:    make(map[balanceKey]ledger.Balance, len(m.balances)),
		entries:     append([]ledger.Entry(nil), m.entries...),
		entryKeys:   make(map[string]bool, len(m.entryKeys)),
		assignments: make(map[string]approval.Assignment, len(m.assignments)),
		holidays:    make(map[string]calendar.Holiday, len(m.holidays)),
		employees:   make(map[approval.EmployeeID]approval.Employee, len(m.employees)),
		audit:       append([]approval.AuditEntry(nil), m.audit...),
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.seq {
		s.seq[k] = v
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.entryKeys {
		s.entryKeys[k] = v
	}
	for k, v := range m.assignments {
		s.assignments[k] = v
	}
	for k, v := range m.holidays {
		s.holidays[k] = v
	}
	for k, v := range m.employees {
		s.employees[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.requests = s.requests
	m.seq = s.seq
	m.balances = s.balances
	m.entries = s.entries
	m.entryKeys = s.entryKeys
	m.assignments = s.assignments
	m.holidays = s.holidays
	m.employees = s.employees
	m.audit = s.audit
}

// txView delegates to the parent's locked methods. Valid only inside
// WithTx, where the parent's write lock is held.
type txView struct {
	parent *Memory
}

func (v *txView) CreateRequest(_ context.Context, r *approval.Request) error {
	return v.parent.createRequestLocked(r)
}

func (v *txView) GetRequest(_ context.Context, id approval.RequestID) (*approval.Request, error) {
	return v.parent.getRequestLocked(id)
}

func (v *txView) ListRequests(_ context.Context, f approval.RequestFilter) ([]*approval.Request, error) {
	return v.parent.listRequestsLocked(f)
}

func (v *txView) UpdateRequest(_ context.Context, r *approval.Request) error {
	return v.parent.updateRequestLocked(r)
}

func (v *txView) UpdateRequestStatus(_ context.Context, r *approval.Request, expected approval.Status) error {
	return v.parent.updateRequestStatusLocked(r, expected)
}

func (v *txView) DeleteRequest(_ context.Context, id approval.RequestID) error {
	return v.parent.deleteRequestLocked(id)
}

func (v *txView) NextRequestNumber(_ context.Context, kind approval.Kind, year int) (string, error) {
	return v.parent.nextRequestNumberLocked(kind, year)
}

func (v *txView) GetBalance(_ context.Context, employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	return v.parent.getBalanceLocked(employeeID, year)
}

func (v *txView) PutBalance(_ context.Context, b ledger.Balance) error {
	return v.parent.putBalanceLocked(b)
}

func (v *txView) ListBalances(_ context.Context, year int) ([]ledger.Balance, error) {
	return v.parent.listBalancesLocked(year)
}

func (v *txView) AppendEntry(_ context.Context, e ledger.Entry) error {
	return v.parent.appendEntryLocked(e)
}

func (v *txView) ListEntries(_ context.Context, employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	return v.parent.listEntriesLocked(employeeID, year)
}

func (v *txView) PutAssignment(_ context.Context, a approval.Assignment) error {
	v.parent.assignments[a.ID] = a
	return nil
}

func (v *txView) DeleteAssignment(_ context.Context, id string) error {
	delete(v.parent.assignments, id)
	return nil
}

func (v *txView) ListAssignments(_ context.Context) ([]approval.Assignment, error) {
	result := make([]approval.Assignment, 0, len(v.parent.assignments))
	for _, a := range v.parent.assignments {
		result = append(result, a)
	}
	return result, nil
}

func (v *txView) FindAssignmentForEmployee(_ context.Context, stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	return v.parent.findAssignmentForEmployeeLocked(stage, employeeID)
}

func (v *txView) FindAssignmentForDepartment(_ context.Context, stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	return v.parent.findAssignmentForDepartmentLocked(stage, dept)
}

func (v *txView) PutHoliday(_ context.Context, h calendar.Holiday) error {
	v.parent.holidays[h.ID] = h
	return nil
}

func (v *txView) DeleteHoliday(_ context.Context, id string) error {
	delete(v.parent.holidays, id)
	return nil
}

func (v *txView) ListHolidays(_ context.Context) ([]calendar.Holiday, error) {
	return v.parent.listHolidaysLocked()
}

func (v *txView) PutEmployee(_ context.Context, e approval.Employee) error {
	v.parent.employees[e.ID] = e
	return nil
}

func (v *txView) GetEmployee(_ context.Context, id approval.EmployeeID) (approval.Employee, error) {
	return v.parent.getEmployeeLocked(id)
}

func (v *txView) ListEmployees(_ context.Context) ([]approval.Employee, error) {
	result := make([]approval.Employee, 0, len(v.parent.employees))
	for _, e := range v.parent.employees {
		result = append(result, e)
	}
	return result, nil
}

func (v *txView) AppendAudit(_ context.Context, e approval.AuditEntry) error {
	return v.parent.appendAuditLocked(e)
}

func (v *txView) ListAudit(_ context.Context, requestID approval.RequestID) ([]approval.AuditEntry, error) {
	var result []approval.AuditEntry
	for _, e := range v.parent.audit {
		if e.RequestID == requestID {
			result = append(result, e)
		}
	}
	return result, nil
}

var _ approval.TxStore = (*Memory)(nil)
var _ approval.Store = (*txView)(nil)
