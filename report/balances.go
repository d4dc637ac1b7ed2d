/*
Package report builds spreadsheet exports for HR.

PURPOSE:
  Turns the balance table for a year into an XLSX workbook: one row
  per employee with entitlement, usage, carry-over, and remaining
  days. HR imports this into whatever they reconcile payroll with.

SEE ALSO:
  - ledger: the balance values exported here
*/
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/ledger"
)

// BalanceReport renders balances into an XLSX workbook. The employee
// map fills in names; unknown IDs fall back to the raw ID.
func BalanceReport(year int, balances []ledger.Balance, employees map[approval.EmployeeID]approval.Employee) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("Balances %d", year)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Employee ID", "Name", "Department", "Entitlement", "Used", "Carry-over initial", "Carry-over remaining", "Remaining"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheet, 1, 1, boldStyle); err != nil {
		return nil, err
	}

	for i, b := range balances {
		row := i + 2
		name, dept := "", ""
		if emp, ok := employees[approval.EmployeeID(b.EmployeeID)]; ok {
			name = emp.Name
			dept = string(emp.Department)
		}
		values := []any{
			b.EmployeeID,
			name,
			dept,
			decimalCell(b.TotalDays.String()),
			decimalCell(b.UsedDays.String()),
			decimalCell(b.CarryoverInitial.String()),
			decimalCell(b.CarryoverRemaining.String()),
			decimalCell(b.Remaining().String()),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// decimalCell widens decimal strings into numbers so the sheet sums
// correctly; non-numeric strings pass through untouched.
func decimalCell(s string) any {
	var fval float64
	if _, err := fmt.Sscanf(s, "%f", &fval); err == nil {
		return fval
	}
	return s
}
