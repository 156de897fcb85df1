package notification

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	reconcile "utilibill/internal/reconcile/domain"
)

// BuildSummaryPDF renders a one-page overage summary attached alongside
// the invoice documents.
func BuildSummaryPDF(event reconcile.OverageEvent, currency string, attachments []DocumentRef) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Utility Overage Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Property: %s", event.PropertyKey))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Billing cycle: %s", event.Cycle.Label()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total cost (%s): %s", currency, event.TotalCost.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Allowance (%s): %s", currency, event.Allowance.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Overage (%s): %s", currency, event.Overage.StringFixed(2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(90, 6, "Document", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	if len(attachments) == 0 {
		pdf.CellFormat(180, 6, "no invoice documents found", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for _, ref := range attachments {
		pdf.CellFormat(50, 6, ref.Period.Format("2006-01"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, string(ref.Category), "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, ref.Name, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
