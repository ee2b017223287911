// Package core holds the domain model shared by the variance reporting
// engine, the collaborator store and the HTTP surface.
//
// Amounts are decimal and always denominated in a single currency; the
// per-currency maps below never convert between currencies. The only places
// where raw values of different currencies are combined into one number are
// the documented summed-percentage scalars on CategoryVariance,
// VendorVariance and VarianceTrend.
package core

import "github.com/shopspring/decimal"

// AmountByCurrency accumulates decimal amounts keyed by currency code.
// Lookups of a missing currency yield zero, which preserves the
// "missing actual means zero" variance semantics.
type AmountByCurrency map[Currency]decimal.Decimal

// Add accumulates amount under c, creating the entry on first use.
func (a AmountByCurrency) Add(c Currency, amount decimal.Decimal) {
	a[c] = a[c].Add(amount)
}

// Get returns the amount for c, zero when absent.
func (a AmountByCurrency) Get(c Currency) decimal.Decimal {
	return a[c]
}

// SumRaw adds the raw numeric values of every currency into one decimal.
// The result mixes currencies without conversion and is only meaningful for
// single-currency maps; callers use it solely for the documented summed
// percentage scalars.
func (a AmountByCurrency) SumRaw() decimal.Decimal {
	total := decimal.Zero
	for _, v := range a {
		total = total.Add(v)
	}
	return total
}

// Currencies returns every currency present in any of the given maps.
func Currencies(maps ...AmountByCurrency) []Currency {
	seen := make(map[Currency]struct{})
	var out []Currency
	for _, m := range maps {
		for c := range m {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

// CategoryVariance aggregates expected vs actual amounts for one tag bucket.
// VariancePercentage is the summed-across-currencies scalar; see package doc.
type CategoryVariance struct {
	Tag                Tag              `json:"tag"`
	Expected           AmountByCurrency `json:"expected"`
	Actual             AmountByCurrency `json:"actual"`
	Variance           AmountByCurrency `json:"variance"`
	VariancePercentage float64          `json:"variance_percentage"`
}

// VendorVariance aggregates expected vs actual amounts for one vendor bucket.
type VendorVariance struct {
	Vendor             Vendor           `json:"vendor"`
	Expected           AmountByCurrency `json:"expected"`
	Actual             AmountByCurrency `json:"actual"`
	Variance           AmountByCurrency `json:"variance"`
	VariancePercentage float64          `json:"variance_percentage"`
}

// VarianceItem is one matched expected transaction with the variance fields
// recorded by the matcher at reconciliation time.
type VarianceItem struct {
	ExpectedTransaction ExpectedTransaction `json:"expected_transaction"`
	VarianceAmount      decimal.Decimal     `json:"variance_amount"`
	VariancePercentage  float64             `json:"variance_percentage"`
}

// VarianceSummary is the flat per-currency roll-up for one month plan.
// Unlike the bucket scalars, VariancePercentage here is per-currency.
type VarianceSummary struct {
	TotalExpectedExpenses AmountByCurrency     `json:"total_expected_expenses"`
	TotalActualExpenses   AmountByCurrency     `json:"total_actual_expenses"`
	TotalExpectedIncome   AmountByCurrency     `json:"total_expected_income"`
	TotalActualIncome     AmountByCurrency     `json:"total_actual_income"`
	TotalVariance         AmountByCurrency     `json:"total_variance"`
	VariancePercentage    map[Currency]float64 `json:"variance_percentage"`
}

// NewVarianceSummary returns a summary with every map initialized so an
// empty plan serializes as empty objects, never null.
func NewVarianceSummary() VarianceSummary {
	return VarianceSummary{
		TotalExpectedExpenses: make(AmountByCurrency),
		TotalActualExpenses:   make(AmountByCurrency),
		TotalExpectedIncome:   make(AmountByCurrency),
		TotalActualIncome:     make(AmountByCurrency),
		TotalVariance:         make(AmountByCurrency),
		VariancePercentage:    make(map[Currency]float64),
	}
}

// VarianceTrend is one month's data point in a trend series.
// VariancePercentage is the summed-across-currencies scalar.
type VarianceTrend struct {
	MonthYear          string           `json:"month_year"`
	TotalVariance      AmountByCurrency `json:"total_variance"`
	VariancePercentage float64          `json:"variance_percentage"`
}

// VarianceReport is the composed month report.
type VarianceReport struct {
	MonthYear        string             `json:"month_year"`
	Summary          VarianceSummary    `json:"summary"`
	ByCategory       []CategoryVariance `json:"by_category"`
	ByVendor         []VendorVariance   `json:"by_vendor"`
	LargestVariances []VarianceItem     `json:"largest_variances"`
}
