package reconcile

import (
	"log"
	"sort"

	"github.com/shopspring/decimal"

	billingcycle "utilibill/internal/billingcycle/domain"
	registry "utilibill/internal/registry/domain"
)

// Reconciler cross-references a usage export with the property registry and
// derives overage events for one billing cycle.
type Reconciler struct {
	logger *log.Logger
}

// Option configures the reconciler.
type Option func(*Reconciler)

// WithLogger attaches a logger for dropped-row diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler constructs a Reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile sums per-property costs over the cycle's two months and emits one
// event per registry entry whose total exceeds its allowance. Export rows
// with no registry entry are dropped; registry entries with no export rows
// total zero. Output ordering is deterministic: overage descending, property
// key ascending on ties.
func (r *Reconciler) Reconcile(records []UsageRecord, entries []registry.Entry, cycle billingcycle.Cycle) ([]OverageEvent, error) {
	if err := registry.ValidateSet(entries); err != nil {
		return nil, err
	}

	known := registry.Index(entries)
	totals := make(map[string]decimal.Decimal, len(entries))
	dropped := 0
	for _, record := range records {
		if !cycle.Contains(record.Period) {
			continue
		}
		if _, ok := known[record.PropertyKey]; !ok {
			dropped++
			continue
		}
		totals[record.PropertyKey] = totals[record.PropertyKey].Add(record.Total())
	}
	if dropped > 0 && r.logger != nil {
		r.logger.Printf("reconcile: dropped %d export rows with no registry entry", dropped)
	}

	events := make([]OverageEvent, 0, len(entries))
	for _, entry := range entries {
		total := totals[entry.PropertyKey]
		overage := total.Sub(entry.Allowance).Round(2)
		if overage.Sign() <= 0 {
			continue
		}
		events = append(events, OverageEvent{
			PropertyKey: entry.PropertyKey,
			Cycle:       cycle,
			TotalCost:   total.Round(2),
			Allowance:   entry.Allowance.Round(2),
			Overage:     overage,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		cmp := events[i].Overage.Cmp(events[j].Overage)
		if cmp != 0 {
			return cmp > 0
		}
		return events[i].PropertyKey < events[j].PropertyKey
	})
	return events, nil
}
