package services

import (
	"context"
	"time"

	"previsto/internal/core"
)

// PlanStore is the read surface the variance engine needs from the
// collaborator store. Implementations scope every query to the requesting
// owner; a plan belonging to another user is indistinguishable from a
// missing one (core.ErrNotFound).
type PlanStore interface {
	// GetMonthPlan resolves a month plan by id for the given owner.
	GetMonthPlan(ctx context.Context, planID, userID string) (core.MonthPlan, error)

	// ListMonthPlans returns the owner's plans whose month_year falls in
	// [start, end], ordered ascending by month_year.
	ListMonthPlans(ctx context.Context, userID string, start, end time.Time) ([]core.MonthPlan, error)

	// ListExpectedTransactions returns every expected transaction of the
	// plan with tags, vendor, payment method and matched transaction joined.
	ListExpectedTransactions(ctx context.Context, planID, userID string) ([]core.ExpectedTransaction, error)
}

// TemplateStore is the surface the plan materializer needs on top of
// PlanStore.
type TemplateStore interface {
	PlanStore
	ListActiveTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error)
	EnsureMonthPlan(ctx context.Context, userID string, monthYear time.Time) (core.MonthPlan, error)
	CreateExpectedTransaction(ctx context.Context, et core.ExpectedTransaction, tagIDs []string) (string, error)
	HasMaterialized(ctx context.Context, templateID, planID string) (bool, error)
}
