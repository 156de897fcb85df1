package excel

import (
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	reconcile "utilibill/internal/reconcile/domain"
	registry "utilibill/internal/registry/domain"
)

var columnAliases = map[string][]string{
	"property":    {"property", "property key", "name", "unit", "address", "asset"},
	"period":      {"period", "month", "date", "billing period"},
	"electricity": {"electricity", "electricity cost", "elec cost", "elec"},
	"water":       {"water", "water cost"},
}

var periodLayouts = []string{
	"2006-01",
	"2006-01-02",
	"Jan 2006",
	"January 2006",
	"01/2006",
	"02/01/2006",
}

// Parser turns a portal export (XLSX or CSV) into usage records with
// registry-canonical property keys. Columns beyond the required set are
// ignored; rows with unreadable cells are dropped, not fatal.
type Parser struct {
	norm   *registry.Normalizer
	logger *log.Logger
}

// Option configures the parser.
type Option func(*Parser)

// WithLogger attaches a logger for dropped-row diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// NewParser constructs a Parser.
func NewParser(norm *registry.Normalizer, opts ...Option) (*Parser, error) {
	if norm == nil {
		return nil, errors.New("export parser: nil normalizer")
	}
	p := &Parser{norm: norm}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ParseFile parses an export on disk, dispatching on the file extension.
func (p *Parser) ParseFile(path string) ([]reconcile.UsageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &reconcile.ParseError{Reason: "open export", Err: err}
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return p.ParseCSV(file)
	}
	return p.Parse(file)
}

// Parse parses an XLSX export.
func (p *Parser) Parse(r io.Reader) ([]reconcile.UsageRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &reconcile.ParseError{Reason: "read workbook", Err: err}
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &reconcile.ParseError{Reason: "workbook has no sheets"}
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, &reconcile.ParseError{Reason: "read sheet " + sheets[0], Err: err}
	}
	return p.parseRows(rows)
}

// ParseCSV parses a CSV export, the portal's fallback download format.
func (p *Parser) ParseCSV(r io.Reader) ([]reconcile.UsageRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &reconcile.ParseError{Reason: "read csv", Err: err}
	}
	return p.parseRows(rows)
}

func (p *Parser) parseRows(rows [][]string) ([]reconcile.UsageRecord, error) {
	if len(rows) == 0 {
		return nil, &reconcile.ParseError{Reason: "empty export"}
	}
	columns, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var records []reconcile.UsageRecord
	dropped := 0
	for i, row := range rows[1:] {
		key := p.norm.Key(cell(row, columns["property"]))
		if key == "" {
			continue
		}
		period, err := parsePeriod(cell(row, columns["period"]))
		if err != nil {
			dropped++
			if p.logger != nil {
				p.logger.Printf("export: row %d: bad period %q", i+2, cell(row, columns["period"]))
			}
			continue
		}
		electricity, err := parseAmount(cell(row, columns["electricity"]))
		if err != nil {
			dropped++
			continue
		}
		water, err := parseAmount(cell(row, columns["water"]))
		if err != nil {
			dropped++
			continue
		}
		records = append(records, reconcile.UsageRecord{
			PropertyKey: key,
			Period:      period,
			Electricity: electricity,
			Water:       water,
		})
	}
	if dropped > 0 && p.logger != nil {
		p.logger.Printf("export: dropped %d unreadable rows", dropped)
	}
	return records, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(columnAliases))
	for idx, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		for field, aliases := range columnAliases {
			if _, ok := columns[field]; ok {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[field] = idx
					break
				}
			}
		}
	}
	for field := range columnAliases {
		if _, ok := columns[field]; !ok {
			return nil, &reconcile.ParseError{Reason: "missing column " + field}
		}
	}
	return columns, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parsePeriod(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty period")
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("unrecognized period " + raw)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	raw = strings.NewReplacer("€", "", "$", "", " ", "").Replace(raw)
	comma, dot := strings.LastIndex(raw, ","), strings.LastIndex(raw, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		// European format: dot groups thousands, comma is decimal.
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		raw = strings.ReplaceAll(raw, ",", "")
	case comma >= 0:
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	return decimal.NewFromString(raw)
}
