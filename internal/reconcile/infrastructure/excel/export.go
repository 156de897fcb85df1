package excel

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	billingcycle "utilibill/internal/billingcycle/domain"
	reconcile "utilibill/internal/reconcile/domain"
)

// BuildRunXLSX renders the results of one reconciliation run as a workbook
// with a summary sheet and one row per overage event.
func BuildRunXLSX(cycle billingcycle.Cycle, events []reconcile.OverageEvent, currency string) ([]byte, error) {
	book := excelize.NewFile()
	summarySheet := "summary"
	eventsSheet := "overages"
	book.SetSheetName("Sheet1", summarySheet)
	book.NewSheet(eventsSheet)

	_ = book.SetCellValue(summarySheet, "A1", "Utility Overage Report")
	_ = book.SetCellValue(summarySheet, "A3", "Cycle")
	_ = book.SetCellValue(summarySheet, "B3", cycle.Label())
	_ = book.SetCellValue(summarySheet, "A4", "Currency")
	_ = book.SetCellValue(summarySheet, "B4", currency)
	_ = book.SetCellValue(summarySheet, "A5", "Properties Over Allowance")
	_ = book.SetCellValue(summarySheet, "B5", len(events))

	_ = book.SetCellValue(eventsSheet, "A1", "Property")
	_ = book.SetCellValue(eventsSheet, "B1", "Total Cost")
	_ = book.SetCellValue(eventsSheet, "C1", "Allowance")
	_ = book.SetCellValue(eventsSheet, "D1", "Overage")
	for i, event := range events {
		row := i + 2
		_ = book.SetCellValue(eventsSheet, fmt.Sprintf("A%d", row), event.PropertyKey)
		_ = book.SetCellValue(eventsSheet, fmt.Sprintf("B%d", row), event.TotalCost.StringFixed(2))
		_ = book.SetCellValue(eventsSheet, fmt.Sprintf("C%d", row), event.Allowance.StringFixed(2))
		_ = book.SetCellValue(eventsSheet, fmt.Sprintf("D%d", row), event.Overage.StringFixed(2))
	}

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
