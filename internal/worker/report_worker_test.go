package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"previsto/internal/amqp"
	"previsto/internal/cache"
	"previsto/internal/core"
	"previsto/internal/log"
	"previsto/internal/services"
)

type stubStore struct {
	plans map[string]core.MonthPlan
}

func (s *stubStore) GetMonthPlan(ctx context.Context, planID, userID string) (core.MonthPlan, error) {
	plan, ok := s.plans[planID]
	if !ok || plan.UserID != userID {
		return core.MonthPlan{}, core.ErrNotFound
	}
	return plan, nil
}

func (s *stubStore) ListMonthPlans(ctx context.Context, userID string, start, end time.Time) ([]core.MonthPlan, error) {
	return nil, nil
}

func (s *stubStore) ListExpectedTransactions(ctx context.Context, planID, userID string) ([]core.ExpectedTransaction, error) {
	return nil, nil
}

type stubExporter struct {
	exported []core.VarianceReport
	err      error
}

func (e *stubExporter) AppendReport(ctx context.Context, report core.VarianceReport) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.exported = append(e.exported, report)
	return "Variance!A2:F2", nil
}

func newWorkerUnderTest(exporter *stubExporter) (*ReportWorker, cache.Cache[core.VarianceReport]) {
	store := &stubStore{plans: map[string]core.MonthPlan{
		"p1": {ID: "p1", UserID: "u1", MonthYear: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Status: core.PlanActive},
	}}
	reports := services.NewVarianceReportService(store)
	reportCache := cache.NewLRUCache[core.VarianceReport](10, time.Minute)
	logger := log.New(log.DefaultConfig())
	return NewReportWorker(reports, reportCache, exporter, logger), reportCache
}

func TestHandleTransactionMatchedWarmsCacheAndExports(t *testing.T) {
	exporter := &stubExporter{}
	w, reportCache := newWorkerUnderTest(exporter)

	msg := amqp.NewTransactionMatchedMessage("et-1", "p1", "u1")
	if err := w.HandleTransactionMatched(context.Background(), msg); err != nil {
		t.Fatalf("HandleTransactionMatched: %v", err)
	}

	report, ok := reportCache.Get(CacheKey("p1", "u1"))
	if !ok {
		t.Fatal("report not cached")
	}
	if report.MonthYear != "2025-01-01" {
		t.Errorf("cached month_year = %s", report.MonthYear)
	}
	if len(exporter.exported) != 1 {
		t.Fatalf("exported %d reports, want 1", len(exporter.exported))
	}
}

func TestHandleTransactionMatchedExportFailureIsNotFatal(t *testing.T) {
	exporter := &stubExporter{err: errors.New("quota exceeded")}
	w, reportCache := newWorkerUnderTest(exporter)

	msg := amqp.NewTransactionMatchedMessage("et-1", "p1", "u1")
	if err := w.HandleTransactionMatched(context.Background(), msg); err != nil {
		t.Fatalf("export failure must not fail the message: %v", err)
	}
	if _, ok := reportCache.Get(CacheKey("p1", "u1")); !ok {
		t.Fatal("report should still be cached")
	}
}

func TestHandleTransactionMatchedUnknownPlanFails(t *testing.T) {
	w, _ := newWorkerUnderTest(&stubExporter{})

	msg := amqp.NewTransactionMatchedMessage("et-1", "missing", "u1")
	if err := w.HandleTransactionMatched(context.Background(), msg); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound so the message is requeued", err)
	}
}
