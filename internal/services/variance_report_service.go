package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"previsto/internal/core"
)

// DefaultLargestLimit caps the anomaly list in the composed month report.
const DefaultLargestLimit = 10

// Critical variance thresholds: a matched record is critical when its
// absolute variance percentage exceeds 20% or its absolute variance amount
// exceeds 1000 raw currency units (deliberately not currency-normalized).
var (
	criticalPercentage = 20.0
	criticalAmount     = decimal.NewFromInt(1000)
)

// VarianceReportService compares expected transactions against their matched
// actuals and produces per-plan variance analytics. It is read-only: no call
// mutates the store, and every output is freshly constructed.
type VarianceReportService struct {
	store PlanStore
}

func NewVarianceReportService(store PlanStore) *VarianceReportService {
	return &VarianceReportService{store: store}
}

// reportSections are the four independent loaders a month report is
// assembled from. Keeping them as plain functions isolates the assembly
// rules from data access.
type reportSections struct {
	summary    func(context.Context) (core.VarianceSummary, error)
	categories func(context.Context) ([]core.CategoryVariance, error)
	vendors    func(context.Context) ([]core.VendorVariance, error)
	largest    func(context.Context) ([]core.VarianceItem, error)
}

// GenerateMonthVarianceReport assembles the full report for one month plan:
// summary, category and vendor breakdowns, and the top anomalies.
//
// The plan lookup and the summary are load-bearing; a failure in either fails
// the whole report. The three breakdown sections degrade to empty lists on
// error so a partial report is still useful.
func (s *VarianceReportService) GenerateMonthVarianceReport(ctx context.Context, planID, userID string) (core.VarianceReport, error) {
	plan, err := s.store.GetMonthPlan(ctx, planID, userID)
	if err != nil {
		return core.VarianceReport{}, err
	}

	return s.assembleReport(ctx, plan, reportSections{
		summary: func(ctx context.Context) (core.VarianceSummary, error) {
			return s.varianceSummary(ctx, planID, userID)
		},
		categories: func(ctx context.Context) ([]core.CategoryVariance, error) {
			return s.VariancesByCategory(ctx, planID, userID)
		},
		vendors: func(ctx context.Context) ([]core.VendorVariance, error) {
			return s.VariancesByVendor(ctx, planID, userID)
		},
		largest: func(ctx context.Context) ([]core.VarianceItem, error) {
			return s.LargestVariances(ctx, planID, userID, DefaultLargestLimit)
		},
	})
}

// assembleReport runs the sections concurrently. The sections share no
// state; only the summary propagates its error.
func (s *VarianceReportService) assembleReport(ctx context.Context, plan core.MonthPlan, sections reportSections) (core.VarianceReport, error) {
	var (
		summary    core.VarianceSummary
		byCategory []core.CategoryVariance
		byVendor   []core.VendorVariance
		largest    []core.VarianceItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = sections.summary(gctx)
		return err
	})
	g.Go(func() error {
		byCategory = degradeToEmpty(gctx, "category breakdown", plan.ID, sections.categories)
		return nil
	})
	g.Go(func() error {
		byVendor = degradeToEmpty(gctx, "vendor breakdown", plan.ID, sections.vendors)
		return nil
	})
	g.Go(func() error {
		largest = degradeToEmpty(gctx, "largest variances", plan.ID, sections.largest)
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.VarianceReport{}, fmt.Errorf("generate variance report: %w", err)
	}

	return core.VarianceReport{
		MonthYear:        core.MonthLabel(plan.MonthYear),
		Summary:          summary,
		ByCategory:       byCategory,
		ByVendor:         byVendor,
		LargestVariances: largest,
	}, nil
}

// degradeToEmpty collapses a failed breakdown section into an empty list so
// the surrounding report still goes out.
func degradeToEmpty[T any](ctx context.Context, section, planID string, load func(context.Context) ([]T, error)) []T {
	items, err := load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Report section failed, degrading to empty list",
			"section", section, "plan_id", planID, "error", err)
		return []T{}
	}
	return items
}

// VariancesByCategory groups the plan's expected transactions by tag and
// returns one bucket per tag, sorted by absolute variance percentage
// descending. Untagged records land in the Uncategorized sentinel bucket; a
// record with several tags contributes its full amount to every one of them.
func (s *VarianceReportService) VariancesByCategory(ctx context.Context, planID, userID string) ([]core.CategoryVariance, error) {
	records, err := s.fetchPlanTransactions(ctx, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("calculate category variances: %w", err)
	}

	buckets := make(map[string]*core.CategoryVariance)
	var order []string

	for _, et := range records {
		tags := et.Tags
		if len(tags) == 0 {
			tags = []core.Tag{core.Uncategorized}
		}
		for _, tag := range tags {
			bucket, ok := buckets[tag.ID]
			if !ok {
				bucket = &core.CategoryVariance{
					Tag:      tag,
					Expected: make(core.AmountByCurrency),
					Actual:   make(core.AmountByCurrency),
				}
				buckets[tag.ID] = bucket
				order = append(order, tag.ID)
			}
			accumulate(bucket.Expected, bucket.Actual, et)
		}
	}

	variances := make([]core.CategoryVariance, 0, len(order))
	for _, id := range order {
		bucket := buckets[id]
		bucket.Variance, bucket.VariancePercentage = bucketVariance(bucket.Expected, bucket.Actual)
		variances = append(variances, *bucket)
	}

	sortByAbsPercentage(variances, func(v core.CategoryVariance) float64 { return v.VariancePercentage })
	return variances, nil
}

// VariancesByVendor groups by vendor with the same accumulation rule as
// VariancesByCategory. Records without a vendor are skipped entirely.
func (s *VarianceReportService) VariancesByVendor(ctx context.Context, planID, userID string) ([]core.VendorVariance, error) {
	records, err := s.fetchPlanTransactions(ctx, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("calculate vendor variances: %w", err)
	}

	buckets := make(map[string]*core.VendorVariance)
	var order []string

	for _, et := range records {
		if et.Vendor == nil {
			continue
		}
		bucket, ok := buckets[et.Vendor.ID]
		if !ok {
			bucket = &core.VendorVariance{
				Vendor:   *et.Vendor,
				Expected: make(core.AmountByCurrency),
				Actual:   make(core.AmountByCurrency),
			}
			buckets[et.Vendor.ID] = bucket
			order = append(order, et.Vendor.ID)
		}
		accumulate(bucket.Expected, bucket.Actual, et)
	}

	variances := make([]core.VendorVariance, 0, len(order))
	for _, id := range order {
		bucket := buckets[id]
		bucket.Variance, bucket.VariancePercentage = bucketVariance(bucket.Expected, bucket.Actual)
		variances = append(variances, *bucket)
	}

	sortByAbsPercentage(variances, func(v core.VendorVariance) float64 { return v.VariancePercentage })
	return variances, nil
}

// LargestVariances returns the plan's matched transactions ranked by
// absolute variance percentage descending, truncated to limit.
func (s *VarianceReportService) LargestVariances(ctx context.Context, planID, userID string, limit int) ([]core.VarianceItem, error) {
	items, err := s.matchedVarianceItems(ctx, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("calculate largest variances: %w", err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// CriticalVariances returns every matched transaction whose variance crosses
// a critical threshold, ranked like LargestVariances but without a limit.
func (s *VarianceReportService) CriticalVariances(ctx context.Context, planID, userID string) ([]core.VarianceItem, error) {
	items, err := s.matchedVarianceItems(ctx, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("calculate critical variances: %w", err)
	}

	critical := items[:0:0]
	for _, item := range items {
		if math.Abs(item.VariancePercentage) > criticalPercentage ||
			item.VarianceAmount.Abs().GreaterThan(criticalAmount) {
			critical = append(critical, item)
		}
	}
	if critical == nil {
		critical = []core.VarianceItem{}
	}
	return critical, nil
}

// VarianceTrends walks every month plan in [startMonth, endMonth] ascending
// and emits one data point per plan. Any plan whose summary fails aborts the
// whole series; no partial trend list is returned.
func (s *VarianceReportService) VarianceTrends(ctx context.Context, userID string, startMonth, endMonth time.Time) ([]core.VarianceTrend, error) {
	plans, err := s.store.ListMonthPlans(ctx, userID, startMonth, endMonth)
	if err != nil {
		return nil, fmt.Errorf("calculate variance trends: %w", err)
	}

	trends := make([]core.VarianceTrend, 0, len(plans))
	for _, plan := range plans {
		summary, err := s.varianceSummary(ctx, plan.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("calculate variance trends: %w", err)
		}

		// Summed-across-currencies simplification: raw values of different
		// currencies collapse into one scalar without conversion.
		totalVariance := summary.TotalVariance.SumRaw()
		totalExpected := summary.TotalExpectedExpenses.SumRaw().
			Add(summary.TotalExpectedIncome.SumRaw())

		trends = append(trends, core.VarianceTrend{
			MonthYear:          core.MonthLabel(plan.MonthYear),
			TotalVariance:      summary.TotalVariance,
			VariancePercentage: percentage(totalVariance, totalExpected),
		})
	}

	return trends, nil
}

// VarianceSummary exposes the flat per-currency roll-up for one plan.
func (s *VarianceReportService) VarianceSummary(ctx context.Context, planID, userID string) (core.VarianceSummary, error) {
	return s.varianceSummary(ctx, planID, userID)
}

// varianceSummary does a single flat pass over the plan's records, splitting
// expected/actual sums by transaction type and currency, then derives the
// per-currency net variance and percentage.
func (s *VarianceReportService) varianceSummary(ctx context.Context, planID, userID string) (core.VarianceSummary, error) {
	records, err := s.fetchPlanTransactions(ctx, planID, userID)
	if err != nil {
		return core.VarianceSummary{}, fmt.Errorf("generate variance summary: %w", err)
	}

	summary := core.NewVarianceSummary()

	for _, et := range records {
		if et.TransactionType == core.Expense {
			summary.TotalExpectedExpenses.Add(et.Currency, et.ExpectedAmount)
			if et.IsMatched() {
				summary.TotalActualExpenses.Add(et.Currency, *et.ActualAmount)
			}
		} else {
			summary.TotalExpectedIncome.Add(et.Currency, et.ExpectedAmount)
			if et.IsMatched() {
				summary.TotalActualIncome.Add(et.Currency, *et.ActualAmount)
			}
		}
	}

	currencies := core.Currencies(
		summary.TotalExpectedExpenses, summary.TotalActualExpenses,
		summary.TotalExpectedIncome, summary.TotalActualIncome,
	)
	for _, c := range currencies {
		expenseVariance := summary.TotalActualExpenses.Get(c).Sub(summary.TotalExpectedExpenses.Get(c))
		incomeVariance := summary.TotalActualIncome.Get(c).Sub(summary.TotalExpectedIncome.Get(c))
		summary.TotalVariance[c] = expenseVariance.Add(incomeVariance)

		totalExpected := summary.TotalExpectedExpenses.Get(c).Add(summary.TotalExpectedIncome.Get(c))
		summary.VariancePercentage[c] = percentage(summary.TotalVariance[c], totalExpected)
	}

	return summary, nil
}

// fetchPlanTransactions verifies the plan belongs to the owner and loads its
// expected transactions. No partial results: either the full slice comes
// back or an error does.
func (s *VarianceReportService) fetchPlanTransactions(ctx context.Context, planID, userID string) ([]core.ExpectedTransaction, error) {
	if _, err := s.store.GetMonthPlan(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListExpectedTransactions(ctx, planID, userID)
}

// matchedVarianceItems selects matched records carrying variance fields and
// sorts them by absolute variance percentage descending (stable, so store
// order breaks ties).
func (s *VarianceReportService) matchedVarianceItems(ctx context.Context, planID, userID string) ([]core.VarianceItem, error) {
	records, err := s.fetchPlanTransactions(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	items := make([]core.VarianceItem, 0, len(records))
	for _, et := range records {
		if et.Status != core.StatusMatched || et.VarianceAmount == nil {
			continue
		}
		var pct float64
		if et.VariancePercentage != nil {
			pct = *et.VariancePercentage
		}
		items = append(items, core.VarianceItem{
			ExpectedTransaction: et,
			VarianceAmount:      *et.VarianceAmount,
			VariancePercentage:  pct,
		})
	}

	sortByAbsPercentage(items, func(v core.VarianceItem) float64 { return v.VariancePercentage })
	return items, nil
}

// accumulate applies the shared bucket accumulation rule: the expected
// amount always counts; the actual amount counts only for matched records.
func accumulate(expected, actual core.AmountByCurrency, et core.ExpectedTransaction) {
	expected.Add(et.Currency, et.ExpectedAmount)
	if et.IsMatched() {
		actual.Add(et.Currency, *et.ActualAmount)
	}
}

// bucketVariance derives the per-currency variance map and the
// summed-across-currencies percentage scalar for one bucket. A missing
// actual entry counts as zero, so an unmatched bucket shows the full
// expected amount as negative variance.
func bucketVariance(expected, actual core.AmountByCurrency) (core.AmountByCurrency, float64) {
	variance := make(core.AmountByCurrency, len(expected))
	totalExpected := decimal.Zero
	totalVariance := decimal.Zero

	for currency, expectedAmount := range expected {
		diff := actual.Get(currency).Sub(expectedAmount)
		variance[currency] = diff
		totalExpected = totalExpected.Add(expectedAmount)
		totalVariance = totalVariance.Add(diff)
	}

	return variance, percentage(totalVariance, totalExpected)
}

// percentage returns variance/expected*100, or 0 when expected is not
// strictly positive. Never divides by zero.
func percentage(variance, expected decimal.Decimal) float64 {
	if !expected.IsPositive() {
		return 0
	}
	pct, _ := variance.Div(expected).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func sortByAbsPercentage[T any](items []T, pct func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return math.Abs(pct(items[i])) > math.Abs(pct(items[j]))
	})
}
