package excel

import (
	"errors"
	"io"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	registry "utilibill/internal/registry/domain"
)

var headerAliases = map[string][]string{
	"property":  {"property", "property key", "name", "unit", "address"},
	"allowance": {"allowance", "allowance amount", "limit"},
	"to":        {"to", "recipient", "email"},
	"cc":        {"cc", "cc recipients"},
}

// Loader reads the curated registry workbook. The first sheet must carry a
// header row with property, allowance and recipient columns; extra columns
// are ignored.
type Loader struct {
	norm   *registry.Normalizer
	logger *log.Logger
}

// Option configures the loader.
type Option func(*Loader)

// WithLogger attaches a logger for dropped-row diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader constructs a Loader.
func NewLoader(norm *registry.Normalizer, opts ...Option) (*Loader, error) {
	if norm == nil {
		return nil, errors.New("registry loader: nil normalizer")
	}
	l := &Loader{norm: norm}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadFile loads entries from a workbook on disk.
func (l *Loader) LoadFile(path string) ([]registry.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &registry.Error{Reason: "open workbook", Err: err}
	}
	defer file.Close()
	return l.Load(file)
}

// Load loads entries from workbook bytes.
func (l *Loader) Load(r io.Reader) ([]registry.Entry, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &registry.Error{Reason: "read workbook", Err: err}
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &registry.Error{Reason: "workbook has no sheets"}
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, &registry.Error{Reason: "read sheet " + sheets[0], Err: err}
	}
	if len(rows) < 2 {
		return nil, &registry.Error{Reason: "no data rows"}
	}

	columns, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var entries []registry.Entry
	for i, row := range rows[1:] {
		key := l.norm.Key(cell(row, columns["property"]))
		if key == "" {
			continue
		}
		allowance, err := parseAmount(cell(row, columns["allowance"]))
		if err != nil {
			return nil, &registry.Error{Reason: "bad allowance for " + key, Err: err}
		}
		entry := registry.Entry{
			PropertyKey: key,
			Allowance:   allowance,
			To:          strings.TrimSpace(cell(row, columns["to"])),
			Cc:          splitRecipients(cell(row, columns["cc"])),
		}
		if l.logger != nil && entry.To == "" {
			l.logger.Printf("registry: row %d (%s) has no primary recipient", i+2, key)
		}
		entries = append(entries, entry)
	}
	if err := registry.ValidateSet(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(headerAliases))
	for idx, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		for field, aliases := range headerAliases {
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
	for _, required := range []string{"property", "allowance", "to"} {
		if _, ok := columns[required]; !ok {
			return nil, &registry.Error{Reason: "missing column " + required}
		}
	}
	if _, ok := columns["cc"]; !ok {
		columns["cc"] = -1
	}
	return columns, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func splitRecipients(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ";", ",")
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
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
