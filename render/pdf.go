/*
Package render produces printable documents from decided requests.

PURPOSE:
  Implements approval.DocumentRenderer with gofpdf. Every decided
  request can be turned into a one-page A4 document carrying the
  request details and the collected signature lines, suitable for
  filing or printing.

SEE ALSO:
  - approval/render.go: the contract implemented here
*/
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/intraflow/approval-engine/approval"
)

// PDFRenderer renders requests as A4 PDF documents.
type PDFRenderer struct {
	// Organization appears in the document header.
	Organization string
}

func NewPDFRenderer(organization string) *PDFRenderer {
	return &PDFRenderer{Organization: organization}
}

var _ approval.DocumentRenderer = (*PDFRenderer)(nil)

func (p *PDFRenderer) Render(_ context.Context, req *approval.Request, requester approval.Employee, signers map[approval.SignatureRole]approval.Employee) (*approval.RenderedDocument, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, p.Organization)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title(req))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(50, 7, label)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 7, value)
		pdf.Ln(7)
	}

	line("Request number:", req.Number)
	line("Requester:", fmt.Sprintf("%s (%s)", requester.Name, requester.ID))
	line("Department:", string(req.Department))
	line("Status:", statusLabel(req))
	if req.DecidedAt != nil {
		line("Decided:", req.DecidedAt.Format("2006-01-02 15:04 MST"))
	}
	pdf.Ln(4)

	switch req.Kind {
	case approval.KindLeave:
		line("Leave from:", req.Leave.StartDate.String())
		line("Leave until:", req.Leave.EndDate.String())
		line("Working days:", req.Leave.WorkingDays.String())
		if req.Leave.Replacement != "" {
			line("Replacement:", string(req.Leave.Replacement))
		}
	case approval.KindProcurement:
		line("Category:", req.Procurement.Category)
		line("Urgency:", req.Procurement.Urgency)
		pdf.Ln(3)
		renderItems(pdf, req.Procurement)
	case approval.KindDocument:
		line("Title:", req.Document.Title)
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, req.Document.Body, "", "L", false)
	}

	if req.Status == approval.StatusRejected && req.RejectionReason != "" {
		pdf.Ln(4)
		line("Rejection reason:", req.RejectionReason)
	}

	pdf.Ln(10)
	renderSignatures(pdf, req, signers)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return &approval.RenderedDocument{
		Filename:    strings.ToLower(req.Number) + ".pdf",
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
	}, nil
}

func title(req *approval.Request) string {
	switch req.Kind {
	case approval.KindLeave:
		return "Leave Request"
	case approval.KindProcurement:
		return "Procurement Request"
	default:
		return "Document Request"
	}
}

func statusLabel(req *approval.Request) string {
	if req.Status == approval.StatusApproved {
		return "APPROVED"
	}
	if req.Status == approval.StatusRejected {
		return "REJECTED"
	}
	return string(req.Status)
}

func renderItems(pdf *gofpdf.Fpdf, d *approval.ProcurementDetails) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 7, "Unit", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Total", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range d.Items {
		pdf.CellFormat(70, 7, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, item.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, item.Unit, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, item.UnitPrice.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, item.Quantity.Mul(item.UnitPrice).String(), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(145, 7, "Estimated total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, d.EstimatedValue.String(), "1", 1, "R", false, 0, "")
}

func renderSignatures(pdf *gofpdf.Fpdf, req *approval.Request, signers map[approval.SignatureRole]approval.Employee) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Signatures")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	for _, sig := range req.Signatures {
		name := string(sig.SignerID)
		if emp, ok := signers[sig.Role]; ok {
			name = emp.Name
		}
		pdf.Cell(50, 7, roleLabel(sig.Role))
		pdf.Cell(70, 7, name)
		pdf.Cell(0, 7, sig.SignedAt.Format("2006-01-02"))
		pdf.Ln(7)
	}
}

func roleLabel(role approval.SignatureRole) string {
	switch role {
	case approval.SignatureRequester:
		return "Requester"
	case approval.SignatureDepartmentHead:
		return "Department Head"
	case approval.SignatureProcurement:
		return "Procurement Officer"
	case approval.SignatureDirector:
		return "Director"
	}
	return string(role)
}
