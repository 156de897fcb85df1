package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billingcycle "utilibill/internal/billingcycle/domain"
	reconcile "utilibill/internal/reconcile/domain"
	registry "utilibill/internal/registry/domain"
)

type stubStore struct {
	refs map[string][]DocumentRef
	err  error
}

func (s *stubStore) Find(_ context.Context, propertyKey string, period time.Time, category reconcile.Category) ([]DocumentRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	key := propertyKey + "|" + period.Format("2006-01") + "|" + string(category)
	return s.refs[key], nil
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testEvent = reconcile.OverageEvent{
	PropertyKey: "aribau 1o 1a",
	Cycle:       billingcycle.Cycle{Year: 2025, StartMonth: time.July, EndMonth: time.August},
	TotalCost:   amount("233.76"),
	Allowance:   amount("100.00"),
	Overage:     amount("133.76"),
}

func TestBuildPayloadWithDocuments(t *testing.T) {
	store := &stubStore{refs: map[string][]DocumentRef{
		"aribau 1o 1a|2025-07|electricity": {{ID: "d1", Name: "jul-elec.pdf"}},
		"aribau 1o 1a|2025-08|water":       {{ID: "d2", Name: "aug-water.pdf"}},
	}}
	assembler, err := NewAssembler(store)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	entry := registry.Entry{
		PropertyKey: "aribau 1o 1a",
		Allowance:   amount("100.00"),
		To:          "owner@example.com",
		Cc:          []string{"manager@example.com"},
	}

	payload, err := assembler.Build(context.Background(), testEvent, entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload.To != "owner@example.com" || len(payload.Cc) != 1 {
		t.Fatalf("unexpected recipients %s %v", payload.To, payload.Cc)
	}
	if !strings.Contains(payload.Subject, "Jul-Aug 2025") {
		t.Fatalf("subject missing cycle label: %q", payload.Subject)
	}
	if !strings.Contains(payload.Body, "133.76 EUR") {
		t.Fatalf("body missing overage: %q", payload.Body)
	}
	if len(payload.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(payload.Attachments))
	}
	if len(payload.SummaryPDF) == 0 {
		t.Fatalf("summary pdf empty")
	}
}

func TestBuildPayloadWithoutDocuments(t *testing.T) {
	assembler, err := NewAssembler(&stubStore{})
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	entry := registry.Entry{PropertyKey: "aribau 1o 1a", To: "owner@example.com"}

	payload, err := assembler.Build(context.Background(), testEvent, entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(payload.Attachments) != 0 {
		t.Fatalf("expected no attachments, got %d", len(payload.Attachments))
	}
	if !strings.Contains(payload.Body, "No invoice documents were available") {
		t.Fatalf("body missing absence note: %q", payload.Body)
	}
}

func TestBuildPayloadStoreFailureDegrades(t *testing.T) {
	assembler, err := NewAssembler(&stubStore{err: errors.New("store down")})
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	entry := registry.Entry{PropertyKey: "aribau 1o 1a", To: "owner@example.com"}

	payload, err := assembler.Build(context.Background(), testEvent, entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(payload.Attachments) != 0 {
		t.Fatalf("expected lookup failure to degrade to no attachments")
	}
}

func TestBuildPayloadMissingRecipient(t *testing.T) {
	assembler, err := NewAssembler(&stubStore{})
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	entry := registry.Entry{PropertyKey: "aribau 1o 1a", To: "   "}

	_, err = assembler.Build(context.Background(), testEvent, entry)
	var recErr *RecipientError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected recipient error, got %v", err)
	}
	if recErr.PropertyKey != "aribau 1o 1a" {
		t.Fatalf("unexpected property %s", recErr.PropertyKey)
	}
}
