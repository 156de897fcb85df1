package billingcycle

import (
	"fmt"
	"time"
)

// MinWindowMonths is the portal's data granularity floor for historical ranges.
const MinWindowMonths = 3

// DefaultGraceDays is how far into the following month a just-ended pair
// stays open before it is eligible for reconciliation.
const DefaultGraceDays = 5

// Cycle is a two-consecutive-calendar-month accounting period. Start months
// are always odd (Jan-Feb, Mar-Apr, ... Nov-Dec), so a cycle never crosses a
// year boundary.
type Cycle struct {
	Year       int
	StartMonth time.Month
	EndMonth   time.Month
}

// Label renders the cycle for humans, e.g. "Jul-Aug 2025".
func (c Cycle) Label() string {
	return fmt.Sprintf("%s-%s %d", c.StartMonth.String()[:3], c.EndMonth.String()[:3], c.Year)
}

// Start returns the first instant of the cycle in UTC.
func (c Cycle) Start() time.Time {
	return time.Date(c.Year, c.StartMonth, 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether a reporting period falls inside the cycle.
// Periods are compared at month resolution.
func (c Cycle) Contains(period time.Time) bool {
	if period.IsZero() {
		return false
	}
	period = period.UTC()
	if period.Year() != c.Year {
		return false
	}
	return period.Month() == c.StartMonth || period.Month() == c.EndMonth
}

// Months returns the two month starts of the cycle in order.
func (c Cycle) Months() [2]time.Time {
	return [2]time.Time{
		time.Date(c.Year, c.StartMonth, 1, 0, 0, 0, 0, time.UTC),
		time.Date(c.Year, c.EndMonth, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Window is the span of historical data requested from the portal.
type Window struct {
	MonthsBack int
}

// Calculator derives the target cycle and acquisition window from a date.
type Calculator struct {
	graceDays int
}

// Option configures the calculator.
type Option func(*Calculator)

// WithGraceDays overrides the default grace period.
func WithGraceDays(days int) Option {
	return func(c *Calculator) {
		if days >= 0 {
			c.graceDays = days
		}
	}
}

// NewCalculator constructs a Calculator.
func NewCalculator(opts ...Option) Calculator {
	c := Calculator{graceDays: DefaultGraceDays}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Compute returns the most recent closed cycle strictly before today's month
// and the smallest window that covers it through today, floored at
// MinWindowMonths. The previous pair is targeted when the latest pair ended
// within the grace period.
func (c Calculator) Compute(today time.Time) (Cycle, Window, error) {
	if today.IsZero() {
		return Cycle{}, Window{}, ErrInvalidDate
	}
	today = today.UTC()

	year, month := today.Year(), int(today.Month())
	prevYear, prevMonth := year, month-1
	if prevMonth == 0 {
		prevMonth = 12
		prevYear--
	}

	startYear, startMonth := prevYear, prevMonth
	if prevMonth%2 == 0 {
		// Previous month closed a pair. Honor the grace rule before
		// treating that pair as reconcilable.
		startMonth = prevMonth - 1
		if today.Day() <= c.graceDays {
			startMonth -= 2
		}
	} else {
		// Previous month opened a pair that closes this month; the
		// latest complete pair ended two months ago.
		startMonth = prevMonth - 2
	}
	if startMonth < 1 {
		startMonth += 12
		startYear--
	}

	cycle := Cycle{
		Year:       startYear,
		StartMonth: time.Month(startMonth),
		EndMonth:   time.Month(startMonth + 1),
	}

	monthsBack := (year*12 + month) - (startYear*12 + startMonth) + 1
	if monthsBack < MinWindowMonths {
		monthsBack = MinWindowMonths
	}
	return cycle, Window{MonthsBack: monthsBack}, nil
}
