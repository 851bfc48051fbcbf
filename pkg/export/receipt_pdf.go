package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one allocation printed on a receipt.
type ReceiptLine struct {
	Description string
	Amount      float64
}

// ReceiptData carries everything a printable receipt needs.
type ReceiptData struct {
	ReceiptNumber  string
	StudentName    string
	StudentID      string
	Mode           string
	CollectedBy    string
	ProcessedAt    time.Time
	Lines          []ReceiptLine
	DiscountAmount float64
	TotalAmount    float64
}

// ReceiptRenderer produces printable payment receipts.
type ReceiptRenderer struct {
	currency string
}

// NewReceiptRenderer constructs a renderer for the given currency code.
func NewReceiptRenderer(currency string) *ReceiptRenderer {
	if currency == "" {
		currency = "INR"
	}
	return &ReceiptRenderer{currency: currency}
}

// Render creates the PDF receipt document.
func (r *ReceiptRenderer) Render(data ReceiptData) ([]byte, error) {
	if data.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt requires a receipt number")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "FEE PAYMENT RECEIPT", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Receipt No: %s", data.ReceiptNumber), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(60, 6, "Student", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, data.StudentName, "", 1, "R", false, 0, "")
	pdf.CellFormat(60, 6, "Date", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, data.ProcessedAt.Format("02 Jan 2006 15:04"), "", 1, "R", false, 0, "")
	pdf.CellFormat(60, 6, "Payment Mode", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, data.Mode, "", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(94, 7, "Description", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 7, fmt.Sprintf("Amount (%s)", r.currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, line := range data.Lines {
		pdf.CellFormat(94, 7, line.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", line.Amount), "1", 1, "R", false, 0, "")
	}
	if data.DiscountAmount > 0 {
		pdf.CellFormat(94, 7, "Discount", "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("-%.2f", data.DiscountAmount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(94, 8, "Total Collected", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", data.TotalAmount), "1", 1, "R", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Collected by %s", data.CollectedBy), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 5, "This is a system generated receipt.", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
