package excel

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	registry "utilibill/internal/registry/domain"
)

func buildWorkbook(t *testing.T, header []string, rows [][]string) *bytes.Buffer {
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

func newLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader(registry.NewNormalizer())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	return loader
}

func TestLoadRegistryWorkbook(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{"Property", "Allowance", "To", "Cc", "Notes"},
		[][]string{
			{"Aribau 1º 1ª", "70,00", "owner1@example.com", "ops@example.com; billing@example.com", "ignored"},
			{"Padilla 1", "150", "owner2@example.com", "", ""},
			{"", "", "", "", ""},
		},
	)
	entries, err := newLoader(t).Load(buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.PropertyKey != "aribau 1o 1a" {
		t.Fatalf("unexpected key %q", first.PropertyKey)
	}
	if first.Allowance.StringFixed(2) != "70.00" {
		t.Fatalf("unexpected allowance %s", first.Allowance)
	}
	if first.To != "owner1@example.com" || len(first.Cc) != 2 {
		t.Fatalf("unexpected recipients %q %v", first.To, first.Cc)
	}
}

func TestLoadRejectsMissingColumn(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{"Property", "To"},
		[][]string{{"Padilla 1", "owner@example.com"}},
	)
	_, err := newLoader(t).Load(buf)
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestLoadRejectsEmptyWorkbook(t *testing.T) {
	buf := buildWorkbook(t, []string{"Property", "Allowance", "To"}, nil)
	_, err := newLoader(t).Load(buf)
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestLoadRejectsDuplicateKeys(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{"Property", "Allowance", "To"},
		[][]string{
			{"Padilla 1", "100", "a@example.com"},
			{"  PADILLA   1 ", "120", "b@example.com"},
		},
	)
	_, err := newLoader(t).Load(buf)
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		t.Fatalf("expected registry error for duplicate keys, got %v", err)
	}
}

func TestLoadManyEntries(t *testing.T) {
	var rows [][]string
	for i := 0; i < 12; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("Property %d", i),
			fmt.Sprintf("%d", 50+i),
			fmt.Sprintf("owner%d@example.com", i),
		})
	}
	buf := buildWorkbook(t, []string{"Property", "Allowance", "To"}, rows)
	entries, err := newLoader(t).Load(buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 12 {
		t.Fatalf("expected 12 entries, got %d", len(entries))
	}
}
