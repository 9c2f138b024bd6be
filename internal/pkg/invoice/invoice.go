package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Data 发票要素
type Data struct {
	PaymentID    string
	OrderID      string
	CustomerName string
	Email        string
	ItemName     string
	Amount       float64
	Currency     string
	PaidAt       time.Time
}

// Generate 渲染一页 PDF 发票
func Generate(d Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Payment Receipt")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Payment ID", d.PaymentID},
		{"Order ID", d.OrderID},
		{"Billed To", d.CustomerName},
		{"Email", d.Email},
		{"Item", d.ItemName},
		{"Amount", fmt.Sprintf("%.2f %s", d.Amount, d.Currency)},
		{"Date", d.PaidAt.Format("02 Jan 2006 15:04 MST")},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "This is a system generated receipt and does not require a signature.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice render failed: %w", err)
	}
	return buf.Bytes(), nil
}
