// Package worker runs the background report warmer: it consumes matched
// transaction events and regenerates the affected month report so the next
// HTTP read is served from cache.
package worker

import (
	"context"
	"fmt"
	"time"

	"previsto/internal/amqp"
	"previsto/internal/cache"
	"previsto/internal/core"
	"previsto/internal/log"
	"previsto/internal/services"
	"previsto/internal/sheets"
)

// ReportWorker regenerates variance reports when transactions are matched.
type ReportWorker struct {
	reports  *services.VarianceReportService
	cache    cache.Cache[core.VarianceReport]
	exporter sheets.ReportExporter // optional
	logger   *log.Logger
}

// NewReportWorker creates a worker. exporter may be nil when no spreadsheet
// is configured.
func NewReportWorker(reports *services.VarianceReportService, reportCache cache.Cache[core.VarianceReport], exporter sheets.ReportExporter, logger *log.Logger) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		cache:    reportCache,
		exporter: exporter,
		logger:   logger,
	}
}

// Run consumes matched messages until ctx is cancelled.
func (w *ReportWorker) Run(ctx context.Context, client *amqp.Client) error {
	w.logger.InfoContext(ctx, "Report worker started")
	return client.ConsumeTransactionMatched(ctx, func(msg *amqp.TransactionMatchedMessage) error {
		return w.HandleTransactionMatched(ctx, msg)
	})
}

// HandleTransactionMatched rebuilds the report for the plan named in the
// message and replaces the cached copy. Export failures are logged but do
// not fail the message: the report itself is already fresh.
func (w *ReportWorker) HandleTransactionMatched(ctx context.Context, msg *amqp.TransactionMatchedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report, err := w.reports.GenerateMonthVarianceReport(ctx, msg.MonthPlanID, msg.UserID)
	if err != nil {
		return fmt.Errorf("regenerate report for plan %s: %w", msg.MonthPlanID, err)
	}

	w.cache.Set(CacheKey(msg.MonthPlanID, msg.UserID), report)

	w.logger.InfoContext(ctx, "Refreshed variance report",
		log.FieldPlanID, msg.MonthPlanID,
		log.FieldUserID, msg.UserID,
		log.FieldMonthYear, report.MonthYear)

	if w.exporter != nil {
		if rowRef, err := w.exporter.AppendReport(ctx, report); err != nil {
			w.logger.WarnContext(ctx, "Report export failed",
				log.FieldPlanID, msg.MonthPlanID,
				log.FieldError, err.Error())
		} else {
			w.logger.DebugContext(ctx, "Report exported",
				log.FieldPlanID, msg.MonthPlanID,
				"row_ref", rowRef)
		}
	}

	return nil
}

// CacheKey is the shared cache key scheme for month reports. The HTTP layer
// and the worker must agree on it or warming is useless.
func CacheKey(planID, userID string) string {
	return planID + ":" + userID
}
