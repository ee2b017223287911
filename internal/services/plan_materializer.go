package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"previsto/internal/core"
)

// PlanMaterializer turns active recurring templates into pending expected
// transactions for a target month. Materialization is idempotent per
// (template, plan): a template already expanded into a plan is skipped.
type PlanMaterializer struct {
	store TemplateStore
}

func NewPlanMaterializer(store TemplateStore) *PlanMaterializer {
	return &PlanMaterializer{store: store}
}

// MaterializeMonth ensures the owner's plan for the given month exists and
// creates one pending expected transaction per due date of every active
// template. Returns the number of expected transactions created.
func (m *PlanMaterializer) MaterializeMonth(ctx context.Context, userID string, month time.Time) (int, error) {
	if m.store == nil {
		return 0, fmt.Errorf("materializer not properly initialized")
	}

	monthStart := core.MonthStart(month)

	plan, err := m.store.EnsureMonthPlan(ctx, userID, monthStart)
	if err != nil {
		return 0, fmt.Errorf("ensure month plan: %w", err)
	}

	templates, err := m.store.ListActiveTemplates(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	slog.InfoContext(ctx, "Materializing month plan",
		"plan_id", plan.ID,
		"month_year", core.MonthLabel(monthStart),
		"total_templates", len(templates))

	created := 0

	for _, tpl := range templates {
		// Templates anchored after the target month have not started yet.
		if core.MonthStart(tpl.AnchorDate).After(monthStart) {
			continue
		}

		done, err := m.store.HasMaterialized(ctx, tpl.ID, plan.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check materialization state",
				"template_id", tpl.ID, "plan_id", plan.ID, "error", err)
			continue
		}
		if done {
			continue
		}

		checker, err := GetScheduleChecker(tpl.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping template with unknown frequency",
				"template_id", tpl.ID, "frequency", tpl.Frequency)
			continue
		}

		for _, due := range checker.DueDates(monthStart, tpl.AnchorDate) {
			et := core.ExpectedTransaction{
				UserID:          userID,
				TemplateID:      tpl.ID,
				MonthPlanID:     plan.ID,
				Description:     tpl.Description,
				ExpectedAmount:  tpl.ExpectedAmount,
				Currency:        tpl.Currency,
				TransactionType: tpl.TransactionType,
				ExpectedDate:    due,
				Status:          core.StatusPending,
			}
			// Vendor and payment method links must survive materialization or
			// the record falls out of the vendor breakdown.
			if tpl.VendorID != "" {
				et.Vendor = &core.Vendor{ID: tpl.VendorID}
			}
			if tpl.PaymentMethodID != "" {
				et.PaymentMethod = &core.PaymentMethod{ID: tpl.PaymentMethodID}
			}
			if err := et.Validate(); err != nil {
				slog.ErrorContext(ctx, "Template produced invalid expected transaction",
					"template_id", tpl.ID, "error", err)
				continue
			}

			if _, err := m.store.CreateExpectedTransaction(ctx, et, tpl.TagIDs); err != nil {
				slog.ErrorContext(ctx, "Failed to create expected transaction",
					"template_id", tpl.ID,
					"plan_id", plan.ID,
					"expected_date", due.Format("2006-01-02"),
					"error", err)
				continue
			}
			created++
		}

		slog.InfoContext(ctx, "Materialized template into plan",
			"template_id", tpl.ID,
			"description", tpl.Description,
			"frequency", tpl.Frequency)
	}

	slog.InfoContext(ctx, "Month plan materialization complete",
		"plan_id", plan.ID,
		"created", created,
		"total_templates", len(templates))

	return created, nil
}
