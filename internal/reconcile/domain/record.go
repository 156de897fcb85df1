package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	billingcycle "utilibill/internal/billingcycle/domain"
)

// Category labels a utility cost stream.
type Category string

const (
	CategoryElectricity Category = "electricity"
	CategoryWater       Category = "water"
)

// Categories lists the cost streams covered by a usage export.
var Categories = []Category{CategoryElectricity, CategoryWater}

// UsageRecord is one export row: the utility costs for one property in one
// reporting period. PropertyKey is already normalized to the registry's
// canonical form. Records are transient and scoped to a single run.
type UsageRecord struct {
	PropertyKey string
	Period      time.Time
	Electricity decimal.Decimal
	Water       decimal.Decimal
}

// Total returns the combined cost of the record.
func (r UsageRecord) Total() decimal.Decimal {
	return r.Electricity.Add(r.Water)
}

// OverageEvent is one property exceeding its allowance for a cycle. Only
// positive overages are materialized.
type OverageEvent struct {
	PropertyKey string
	Cycle       billingcycle.Cycle
	TotalCost   decimal.Decimal
	Allowance   decimal.Decimal
	Overage     decimal.Decimal
}
