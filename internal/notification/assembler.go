package notification

import (
	"context"
	"errors"
	"log"
	"strings"

	reconcile "utilibill/internal/reconcile/domain"
	registry "utilibill/internal/registry/domain"
)

// Assembler builds notification payloads from overage events. Document
// lookups degrade gracefully: a property with no stored invoices still
// gets a payload, just without attachments.
type Assembler struct {
	store    DocumentStore
	tpl      *Template
	currency string
	logger   *log.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTemplate overrides the default subject and body templates.
func WithTemplate(tpl *Template) Option {
	return func(a *Assembler) { a.tpl = tpl }
}

// WithCurrency sets the currency code rendered into the body.
func WithCurrency(currency string) Option {
	return func(a *Assembler) { a.currency = currency }
}

// WithLogger attaches a logger for document lookup diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// NewAssembler constructs an Assembler over a document store.
func NewAssembler(store DocumentStore, opts ...Option) (*Assembler, error) {
	if store == nil {
		return nil, errors.New("notification assembler: nil document store")
	}
	tpl, err := NewTemplate("", "")
	if err != nil {
		return nil, err
	}
	a := &Assembler{store: store, tpl: tpl, currency: "EUR"}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Build assembles the payload for one overage event and its registry
// entry. The entry supplies recipients; the event supplies amounts.
func (a *Assembler) Build(ctx context.Context, event reconcile.OverageEvent, entry registry.Entry) (*Payload, error) {
	if strings.TrimSpace(entry.To) == "" {
		return nil, &RecipientError{PropertyKey: event.PropertyKey}
	}

	attachments := a.collectDocuments(ctx, event)
	subject, body, err := a.tpl.Render(TemplateData{
		Property:       event.PropertyKey,
		CycleLabel:     event.Cycle.Label(),
		TotalCost:      event.TotalCost.StringFixed(2),
		Allowance:      event.Allowance.StringFixed(2),
		Overage:        event.Overage.StringFixed(2),
		Currency:       a.currency,
		HasAttachments: len(attachments) > 0,
	})
	if err != nil {
		return nil, err
	}

	summary, err := BuildSummaryPDF(event, a.currency, attachments)
	if err != nil {
		return nil, err
	}
	return &Payload{
		PropertyKey: event.PropertyKey,
		Subject:     subject,
		Body:        body,
		To:          entry.To,
		Cc:          append([]string(nil), entry.Cc...),
		Attachments: attachments,
		SummaryPDF:  summary,
	}, nil
}

// collectDocuments queries the store for both cycle months across every
// utility category. Lookup failures are logged and treated as absence.
func (a *Assembler) collectDocuments(ctx context.Context, event reconcile.OverageEvent) []DocumentRef {
	var refs []DocumentRef
	for _, period := range event.Cycle.Months() {
		for _, category := range reconcile.Categories {
			found, err := a.store.Find(ctx, event.PropertyKey, period, category)
			if err != nil {
				if a.logger != nil {
					a.logger.Printf("notification: document lookup %s %s %s: %v",
						event.PropertyKey, period.Format("2006-01"), category, err)
				}
				continue
			}
			refs = append(refs, found...)
		}
	}
	return refs
}
