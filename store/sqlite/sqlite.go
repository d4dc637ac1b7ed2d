/*
Package sqlite is the durable store implementation.

PURPOSE:
  Implements approval.TxStore on a single SQLite file. Suited for the
  single-node deployments this engine targets; the same SQL shapes
  port to PostgreSQL with minor dialect changes.

CONCURRENCY:
  The database is opened in WAL mode (readers don't block, one writer
  at a time) and guarded by a process-level mutex. Status transitions
  are a conditional UPDATE ... WHERE status = ?, so the CAS contract
  holds even against writers outside this process.

TRANSACTIONS:
  WithTx wraps fn in one BEGIN/COMMIT. The tx view delegates to the
  same statement helpers as the plain store, executed against the
  open *sql.Tx.

SCHEMA:
  requests:     one row per request; payload and signatures as JSON
  request_seq:  per kind+year number allocation
  balances:     one row per employee+year, UNIQUE enforced
  entries:      append-only ledger, idempotency_key UNIQUE
  assignments:  approval chain configuration
  holidays:     the working-day calendar
  employees:    identity records
  audit_log:    append-only request history

  Schema is auto-migrated on New(). Versioned migrations (e.g.
  golang-migrate) are a deployment concern left to operators.

SEE ALSO:
  - approval/store.go: the contracts implemented here
  - store/memory: the in-memory twin used in tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/calendar"
	"github.com/intraflow/approval-engine/ledger"
)

// Store implements approval.TxStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at path and migrates the
// schema. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		department TEXT NOT NULL,
		status TEXT NOT NULL,
		signatures_json TEXT NOT NULL DEFAULT '[]',
		rejection_reason TEXT,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_requester
		ON requests(requester_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_department
		ON requests(department);

	CREATE TABLE IF NOT EXISTS request_seq (
		key TEXT PRIMARY KEY,
		n INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_days TEXT NOT NULL,
		used_days TEXT NOT NULL,
		carryover_initial TEXT NOT NULL,
		carryover_remaining TEXT NOT NULL,
		carryover_from_year INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, year)
	);

	-- Append-only: no UPDATE or DELETE is ever issued against entries.
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		delta TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		request_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee_year
		ON entries(employee_id, year);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		employee_id TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		approver_id TEXT NOT NULL,
		delegate_id TEXT NOT NULL DEFAULT '',
		delegation_start TEXT,
		delegation_end TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_stage
		ON assignments(stage);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT,
		position TEXT,
		hire_date TEXT
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		stage TEXT,
		detail TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_log(request_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REQUESTS
// =============================================================================

// requestPayload is the JSON shape of the variant payload column.
type requestPayload struct {
	Leave       *approval.LeaveDetails       `json:"leave,omitempty"`
	Procurement *approval.ProcurementDetails `json:"procurement,omitempty"`
	Document    *approval.DocumentDetails    `json:"document,omitempty"`
}

func (s *Store) CreateRequest(ctx context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRequest(ctx, s.db, r)
}

func createRequest(ctx context.Context, db dbtx, r *approval.Request) error {
	payload, err := json.Marshal(requestPayload{Leave: r.Leave, Procurement: r.Procurement, Document: r.Document})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	sigs, err := json.Marshal(r.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO requests
		(id, number, kind, requester_id, department, status, signatures_json,
		 rejection_reason, payload_json, created_at, updated_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Number, r.Kind, r.RequesterID, r.Department, r.Status,
		string(sigs), nullString(r.RejectionReason), string(payload),
		fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt), nullTime(r.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

const requestColumns = `id, number, kind, requester_id, department, status,
	signatures_json, rejection_reason, payload_json, created_at, updated_at, decided_at`

func (s *Store) GetRequest(ctx context.Context, id approval.RequestID) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, db dbtx, id approval.RequestID) (*approval.Request, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*approval.Request, error) {
	var (
		r                    approval.Request
		sigs, payload        string
		rejection, decidedAt sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.Number, &r.Kind, &r.RequesterID, &r.Department,
		&r.Status, &sigs, &rejection, &payload, &createdAt, &updatedAt, &decidedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sigs), &r.Signatures); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	var p requestPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	r.Leave, r.Procurement, r.Document = p.Leave, p.Procurement, p.Document
	r.RejectionReason = rejection.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, decidedAt.String)
		r.DecidedAt = &t
	}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, f approval.RequestFilter) ([]*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, f)
}

func listRequests(ctx context.Context, db dbtx, f approval.RequestFilter) ([]*approval.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE 1=1"
	var args []any
	if f.RequesterID != "" {
		query += " AND requester_id = ?"
		args = append(args, f.RequesterID)
	}
	if f.Department != "" {
		query += " AND department = ?"
		args = append(args, f.Department)
	}
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Number != "" {
		query += " AND number = ?"
		args = append(args, f.Number)
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var result []*approval.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateRequest(ctx context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, r)
}

func updateRequest(ctx context.Context, db dbtx, r *approval.Request) error {
	payload, err := json.Marshal(requestPayload{Leave: r.Leave, Procurement: r.Procurement, Document: r.Document})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE requests SET payload_json = ?, updated_at = ? WHERE id = ?`,
		string(payload), fmtTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, r *approval.Request, expected approval.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequestStatus(ctx, s.db, r, expected)
}

// updateRequestStatus is the CAS write: the UPDATE lands only when
// the stored status still matches what the caller read.
func updateRequestStatus(ctx context.Context, db dbtx, r *approval.Request, expected approval.Status) error {
	sigs, err := json.Marshal(r.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}
	payload, err := json.Marshal(requestPayload{Leave: r.Leave, Procurement: r.Procurement, Document: r.Document})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, signatures_json = ?, rejection_reason = ?,
		    payload_json = ?, updated_at = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		r.Status, string(sigs), nullString(r.RejectionReason),
		string(payload), fmtTime(r.UpdatedAt), nullTime(r.DecidedAt),
		r.ID, expected)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := getRequest(ctx, db, r.ID); errors.Is(err, approval.ErrNotFound) {
			return approval.ErrNotFound
		}
		return approval.ErrConcurrentModification
	}
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id approval.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRequest(ctx, s.db, id)
}

func deleteRequest(ctx context.Context, db dbtx, id approval.RequestID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) NextRequestNumber(ctx context.Context, kind approval.Kind, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextRequestNumber(ctx, s.db, kind, year)
}

func nextRequestNumber(ctx context.Context, db dbtx, kind approval.Kind, year int) (string, error) {
	key := fmt.Sprintf("%s-%d", kind.NumberPrefix(), year)
	var n int
	err := db.QueryRowContext(ctx, `
		INSERT INTO request_seq (key, n) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET n = n + 1
		RETURNING n`, key).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("allocate request number: %w", err)
	}
	return fmt.Sprintf("%s-%04d", key, n), nil
}

// =============================================================================
// BALANCES + ENTRIES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, employeeID, year)
}

func getBalance(ctx context.Context, db dbtx, employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	row := db.QueryRowContext(ctx, `
		SELECT employee_id, year, total_days, used_days,
		       carryover_initial, carryover_remaining, carryover_from_year
		FROM balances WHERE employee_id = ? AND year = ?`, employeeID, year)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{}, ledger.ErrBalanceNotFound
	}
	return b, err
}

func scanBalance(row rowScanner) (ledger.Balance, error) {
	var (
		b                                    ledger.Balance
		total, used, coInitial, coRemaining string
	)
	if err := row.Scan(&b.EmployeeID, &b.Year, &total, &used, &coInitial, &coRemaining, &b.CarryoverFromYear); err != nil {
		return ledger.Balance{}, err
	}
	var err error
	if b.TotalDays, err = decimal.NewFromString(total); err != nil {
		return ledger.Balance{}, fmt.Errorf("parse total_days: %w", err)
	}
	if b.UsedDays, err = decimal.NewFromString(used); err != nil {
		return ledger.Balance{}, fmt.Errorf("parse used_days: %w", err)
	}
	if b.CarryoverInitial, err = decimal.NewFromString(coInitial); err != nil {
		return ledger.Balance{}, fmt.Errorf("parse carryover_initial: %w", err)
	}
	if b.CarryoverRemaining, err = decimal.NewFromString(coRemaining); err != nil {
		return ledger.Balance{}, fmt.Errorf("parse carryover_remaining: %w", err)
	}
	return b, nil
}

func (s *Store) PutBalance(ctx context.Context, b ledger.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putBalance(ctx, s.db, b)
}

func putBalance(ctx context.Context, db dbtx, b ledger.Balance) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO balances
		(employee_id, year, total_days, used_days, carryover_initial, carryover_remaining, carryover_from_year)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			total_days = excluded.total_days,
			used_days = excluded.used_days,
			carryover_initial = excluded.carryover_initial,
			carryover_remaining = excluded.carryover_remaining,
			carryover_from_year = excluded.carryover_from_year`,
		b.EmployeeID, b.Year, b.TotalDays.String(), b.UsedDays.String(),
		b.CarryoverInitial.String(), b.CarryoverRemaining.String(), b.CarryoverFromYear)
	if err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, year int) ([]ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalances(ctx, s.db, year)
}

func listBalances(ctx context.Context, db dbtx, year int) ([]ledger.Balance, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT employee_id, year, total_days, used_days,
		       carryover_initial, carryover_remaining, carryover_from_year
		FROM balances WHERE year = ? ORDER BY employee_id`, year)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var result []ledger.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db dbtx, e ledger.Entry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO entries
		(id, employee_id, year, delta, entry_type, request_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, e.Year, e.Delta.String(), e.Type,
		nullString(e.RequestID), nullString(e.Reason),
		nullString(e.IdempotencyKey), nullString(e.CreatedBy),
		fmtTime(e.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			// A replayed commit; the first write stands.
			return nil
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntries(ctx, s.db, employeeID, year)
}

func listEntries(ctx context.Context, db dbtx, employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, year, delta, entry_type, request_id, reason, idempotency_key, created_by, created_at
		FROM entries WHERE employee_id = ? AND year = ?
		ORDER BY created_at ASC`, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var result []ledger.Entry
	for rows.Next() {
		var (
			e                              ledger.Entry
			delta, createdAt               string
			requestID, reason, key, author sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Year, &delta, &e.Type,
			&requestID, &reason, &key, &author, &createdAt); err != nil {
			return nil, err
		}
		if e.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("parse delta: %w", err)
		}
		e.RequestID = requestID.String
		e.Reason = reason.String
		e.IdempotencyKey = key.String
		e.CreatedBy = author.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) PutAssignment(ctx context.Context, a approval.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putAssignment(ctx, s.db, a)
}

func putAssignment(ctx context.Context, db dbtx, a approval.Assignment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO assignments
		(id, stage, employee_id, department, approver_id, delegate_id, delegation_start, delegation_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			employee_id = excluded.employee_id,
			department = excluded.department,
			approver_id = excluded.approver_id,
			delegate_id = excluded.delegate_id,
			delegation_start = excluded.delegation_start,
			delegation_end = excluded.delegation_end`,
		a.ID, a.Stage, a.EmployeeID, a.Department, a.ApproverID, a.DelegateID,
		nullTime(a.DelegationStart), nullTime(a.DelegationEnd))
	if err != nil {
		return fmt.Errorf("put assignment: %w", err)
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAssignment(ctx, s.db, id)
}

func deleteAssignment(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return requireRowAffected(res)
}

const assignmentColumns = `id, stage, employee_id, department, approver_id,
	delegate_id, delegation_start, delegation_end`

func (s *Store) ListAssignments(ctx context.Context) ([]approval.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAssignments(ctx, s.db)
}

func listAssignments(ctx context.Context, db dbtx) ([]approval.Assignment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var result []approval.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAssignment(row rowScanner) (approval.Assignment, error) {
	var (
		a          approval.Assignment
		start, end sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Stage, &a.EmployeeID, &a.Department,
		&a.ApproverID, &a.DelegateID, &start, &end); err != nil {
		return approval.Assignment{}, err
	}
	if start.Valid {
		t, _ := time.Parse(time.RFC3339, start.String)
		a.DelegationStart = &t
	}
	if end.Valid {
		t, _ := time.Parse(time.RFC3339, end.String)
		a.DelegationEnd = &t
	}
	return a, nil
}

func (s *Store) FindAssignmentForEmployee(ctx context.Context, stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findAssignmentForEmployee(ctx, s.db, stage, employeeID)
}

func findAssignmentForEmployee(ctx context.Context, db dbtx, stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE stage = ? AND employee_id = ? AND employee_id != ''",
		stage, employeeID)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Assignment{}, approval.ErrNotFound
	}
	return a, err
}

func (s *Store) FindAssignmentForDepartment(ctx context.Context, stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findAssignmentForDepartment(ctx, s.db, stage, dept)
}

func findAssignmentForDepartment(ctx context.Context, db dbtx, stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE stage = ? AND department = ? AND employee_id = ''",
		stage, dept)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Assignment{}, approval.ErrNotFound
	}
	return a, err
}

// =============================================================================
// HOLIDAYS + EMPLOYEES
// =============================================================================

func (s *Store) PutHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putHoliday(ctx, s.db, h)
}

func putHoliday(ctx context.Context, db dbtx, h calendar.Holiday) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date, name = excluded.name, recurring = excluded.recurring`,
		h.ID, h.Date.String(), h.Name, h.Recurring)
	if err != nil {
		return fmt.Errorf("put holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteHoliday(ctx, s.db, id)
}

func deleteHoliday(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHolidays(ctx, s.db)
}

func listHolidays(ctx context.Context, db dbtx) ([]calendar.Holiday, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var result []calendar.Holiday
	for rows.Next() {
		var (
			h    calendar.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (s *Store) PutEmployee(ctx context.Context, e approval.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putEmployee(ctx, s.db, e)
}

func putEmployee(ctx context.Context, db dbtx, e approval.Employee) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, department, position, hire_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email,
			department = excluded.department, position = excluded.position,
			hire_date = excluded.hire_date`,
		e.ID, e.Name, e.Email, e.Department, e.Position, fmtTime(e.HireDate))
	if err != nil {
		return fmt.Errorf("put employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id approval.EmployeeID) (approval.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, db dbtx, id approval.EmployeeID) (approval.Employee, error) {
	var (
		e                          approval.Employee
		email, dept, pos, hireDate sql.NullString
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, email, department, position, hire_date FROM employees WHERE id = ?", id).
		Scan(&e.ID, &e.Name, &email, &dept, &pos, &hireDate)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Employee{}, approval.ErrNotFound
	}
	if err != nil {
		return approval.Employee{}, err
	}
	e.Email = email.String
	e.Department = approval.Department(dept.String)
	e.Position = pos.String
	if hireDate.Valid {
		e.HireDate, _ = time.Parse(time.RFC3339, hireDate.String)
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]approval.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, db dbtx) ([]approval.Employee, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, email, department, position, hire_date FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var result []approval.Employee
	for rows.Next() {
		var (
			e                          approval.Employee
			email, dept, pos, hireDate sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &email, &dept, &pos, &hireDate); err != nil {
			return nil, err
		}
		e.Email = email.String
		e.Department = approval.Department(dept.String)
		e.Position = pos.String
		if hireDate.Valid {
			e.HireDate, _ = time.Parse(time.RFC3339, hireDate.String)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e approval.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func appendAudit(ctx context.Context, db dbtx, e approval.AuditEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log (id, request_id, actor_id, action, stage, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.ActorID, e.Action, nullString(string(e.Stage)),
		nullString(e.Detail), fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, requestID approval.RequestID) ([]approval.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAudit(ctx, s.db, requestID)
}

func listAudit(ctx context.Context, db dbtx, requestID approval.RequestID) ([]approval.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, request_id, actor_id, action, stage, detail, created_at
		FROM audit_log WHERE request_id = ? ORDER BY created_at ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var result []approval.AuditEntry
	for rows.Next() {
		var (
			e             approval.AuditEntry
			stage, detail sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActorID, &e.Action, &stage, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.Stage = approval.Stage(stage.String)
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(approval.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateRequest(ctx context.Context, r *approval.Request) error {
	return createRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id approval.RequestID) (*approval.Request, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequests(ctx context.Context, f approval.RequestFilter) ([]*approval.Request, error) {
	return listRequests(ctx, ts.tx, f)
}

func (ts *txStore) UpdateRequest(ctx context.Context, r *approval.Request) error {
	return updateRequest(ctx, ts.tx, r)
}

func (ts *txStore) UpdateRequestStatus(ctx context.Context, r *approval.Request, expected approval.Status) error {
	return updateRequestStatus(ctx, ts.tx, r, expected)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id approval.RequestID) error {
	return deleteRequest(ctx, ts.tx, id)
}

func (ts *txStore) NextRequestNumber(ctx context.Context, kind approval.Kind, year int) (string, error) {
	return nextRequestNumber(ctx, ts.tx, kind, year)
}

func (ts *txStore) GetBalance(ctx context.Context, employeeID approval.EmployeeID, year int) (ledger.Balance, error) {
	return getBalance(ctx, ts.tx, employeeID, year)
}

func (ts *txStore) PutBalance(ctx context.Context, b ledger.Balance) error {
	return putBalance(ctx, ts.tx, b)
}

func (ts *txStore) ListBalances(ctx context.Context, year int) ([]ledger.Balance, error) {
	return listBalances(ctx, ts.tx, year)
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) ListEntries(ctx context.Context, employeeID approval.EmployeeID, year int) ([]ledger.Entry, error) {
	return listEntries(ctx, ts.tx, employeeID, year)
}

func (ts *txStore) PutAssignment(ctx context.Context, a approval.Assignment) error {
	return putAssignment(ctx, ts.tx, a)
}

func (ts *txStore) DeleteAssignment(ctx context.Context, id string) error {
	return deleteAssignment(ctx, ts.tx, id)
}

func (ts *txStore) ListAssignments(ctx context.Context) ([]approval.Assignment, error) {
	return listAssignments(ctx, ts.tx)
}

func (ts *txStore) FindAssignmentForEmployee(ctx context.Context, stage approval.Stage, employeeID approval.EmployeeID) (approval.Assignment, error) {
	return findAssignmentForEmployee(ctx, ts.tx, stage, employeeID)
}

func (ts *txStore) FindAssignmentForDepartment(ctx context.Context, stage approval.Stage, dept approval.Department) (approval.Assignment, error) {
	return findAssignmentForDepartment(ctx, ts.tx, stage, dept)
}

func (ts *txStore) PutHoliday(ctx context.Context, h calendar.Holiday) error {
	return putHoliday(ctx, ts.tx, h)
}

func (ts *txStore) DeleteHoliday(ctx context.Context, id string) error {
	return deleteHoliday(ctx, ts.tx, id)
}

func (ts *txStore) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	return listHolidays(ctx, ts.tx)
}

func (ts *txStore) PutEmployee(ctx context.Context, e approval.Employee) error {
	return putEmployee(ctx, ts.tx, e)
}

func (ts *txStore) GetEmployee(ctx context.Context, id approval.EmployeeID) (approval.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]approval.Employee, error) {
	return listEmployees(ctx, ts.tx)
}

func (ts *txStore) AppendAudit(ctx context.Context, e approval.AuditEntry) error {
	return appendAudit(ctx, ts.tx, e)
}

func (ts *txStore) ListAudit(ctx context.Context, requestID approval.RequestID) ([]approval.AuditEntry, error) {
	return listAudit(ctx, ts.tx, requestID)
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return approval.ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ approval.TxStore = (*Store)(nil)
var _ approval.Store = (*txStore)(nil)
