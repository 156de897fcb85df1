package excel

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	billingcycle "utilibill/internal/billingcycle/domain"
	reconcile "utilibill/internal/reconcile/domain"
	registry "utilibill/internal/registry/domain"
)

func buildExport(t *testing.T, header []string, rows [][]string) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	sheet := book.GetSheetList()[0]
	for col, value := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := book.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for r, row := range rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := book.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func newParser(t *testing.T) *Parser {
	t.Helper()
	parser, err := NewParser(registry.NewNormalizer())
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	return parser
}

func TestParseExportWorkbook(t *testing.T) {
	buf := buildExport(t,
		[]string{"Name", "Period", "Electricity Cost", "Water Cost", "Gas Cost"},
		[][]string{
			{"Aribau 1º 1ª", "2025-07", "60,00", "20,00", "5,00"},
			{"Aribau 1º 1ª", "2025-08", "40.00", "13.76", "4.00"},
			{"Padilla 1", "Jul 2025", "€ 1.234,56", "0", ""},
			{"", "", "", "", ""},
		},
	)
	records, err := newParser(t).Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	first := records[0]
	if first.PropertyKey != "aribau 1o 1a" {
		t.Fatalf("unexpected key %q", first.PropertyKey)
	}
	if !first.Period.Equal(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period %s", first.Period)
	}
	if first.Total().StringFixed(2) != "80.00" {
		t.Fatalf("unexpected total %s", first.Total())
	}
	if records[2].Electricity.StringFixed(2) != "1234.56" {
		t.Fatalf("expected locale-formatted amount parsed, got %s", records[2].Electricity)
	}
}

func TestParseMissingColumnFails(t *testing.T) {
	buf := buildExport(t,
		[]string{"Name", "Period", "Electricity Cost"},
		[][]string{{"Padilla 1", "2025-07", "10"}},
	)
	_, err := newParser(t).Parse(buf)
	var parseErr *reconcile.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseDropsUnreadableRows(t *testing.T) {
	buf := buildExport(t,
		[]string{"Name", "Period", "Electricity Cost", "Water Cost"},
		[][]string{
			{"Padilla 1", "not-a-period", "10", "0"},
			{"Padilla 1", "2025-07", "10", "0"},
		},
	)
	records, err := newParser(t).Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected bad row dropped, got %d records", len(records))
	}
}

func TestParseCSVExport(t *testing.T) {
	csv := "Name,Period,Electricity Cost,Water Cost\n" +
		"Aribau Escalera,2025-08,12.50,3.25\n"
	records, err := newParser(t).ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].PropertyKey != "aribau escalera" {
		t.Fatalf("unexpected key %q", records[0].PropertyKey)
	}
}

func TestBuildRunXLSXDeterministic(t *testing.T) {
	cycle := billingcycle.Cycle{Year: 2025, StartMonth: time.July, EndMonth: time.August}
	events := []reconcile.OverageEvent{
		{
			PropertyKey: "padilla 1",
			Cycle:       cycle,
			TotalCost:   decimal.NewFromInt(180),
			Allowance:   decimal.NewFromInt(150),
			Overage:     decimal.NewFromInt(30),
		},
	}
	data, err := BuildRunXLSX(cycle, events, "EUR")
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("overages")
	if err != nil {
		t.Fatalf("read overages: %v", err)
	}
	if len(rows) != 2 || rows[1][3] != "30.00" {
		t.Fatalf("unexpected overage rows %v", rows)
	}
}
