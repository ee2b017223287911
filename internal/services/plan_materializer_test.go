package services

import (
	"context"
	"testing"
	"time"

	"previsto/internal/core"
)

type fakeTemplateStore struct {
	fakeStore
	templates    []core.RecurringTemplate
	materialized map[string]bool // templateID:planID
	created      []core.ExpectedTransaction
	createdTags  [][]string
}

func newTemplateStore(templates ...core.RecurringTemplate) *fakeTemplateStore {
	return &fakeTemplateStore{
		fakeStore: fakeStore{
			plans:   map[string]core.MonthPlan{},
			txns:    map[string][]core.ExpectedTransaction{},
			txnErrs: map[string]error{},
		},
		templates:    templates,
		materialized: map[string]bool{},
	}
}

func (f *fakeTemplateStore) ListActiveTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	var active []core.RecurringTemplate
	for _, tpl := range f.templates {
		if tpl.UserID == userID && tpl.Active {
			active = append(active, tpl)
		}
	}
	return active, nil
}

func (f *fakeTemplateStore) EnsureMonthPlan(ctx context.Context, userID string, monthYear time.Time) (core.MonthPlan, error) {
	for _, plan := range f.plans {
		if plan.UserID == userID && plan.MonthYear.Equal(monthYear) {
			return plan, nil
		}
	}
	plan := core.MonthPlan{
		ID:        "plan-" + core.MonthLabel(monthYear),
		UserID:    userID,
		MonthYear: monthYear,
		Status:    core.PlanDraft,
	}
	f.plans[plan.ID] = plan
	return plan, nil
}

func (f *fakeTemplateStore) CreateExpectedTransaction(ctx context.Context, et core.ExpectedTransaction, tagIDs []string) (string, error) {
	f.created = append(f.created, et)
	f.createdTags = append(f.createdTags, tagIDs)
	f.materialized[et.TemplateID+":"+et.MonthPlanID] = true
	return "et-" + et.Description, nil
}

func (f *fakeTemplateStore) HasMaterialized(ctx context.Context, templateID, planID string) (bool, error) {
	return f.materialized[templateID+":"+planID], nil
}

func monthlyRent() core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:              "tpl-rent",
		UserID:          "u1",
		Description:     "Rent",
		ExpectedAmount:  dec("1000"),
		Currency:        core.USD,
		TransactionType: core.Expense,
		Frequency:       core.Monthly,
		AnchorDate:      date(2024, time.March, 5),
		TagIDs:          []string{"tag-housing"},
		Active:          true,
	}
}

func TestMaterializeMonthMonthly(t *testing.T) {
	store := newTemplateStore(monthlyRent())
	m := NewPlanMaterializer(store)

	created, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 10))
	if err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	et := store.created[0]
	if et.Description != "Rent" || et.Status != core.StatusPending {
		t.Errorf("unexpected record %+v", et)
	}
	if !et.ExpectedDate.Equal(date(2025, time.January, 5)) {
		t.Errorf("expected date = %v, want 2025-01-05", et.ExpectedDate)
	}
	if len(store.createdTags[0]) != 1 || store.createdTags[0][0] != "tag-housing" {
		t.Errorf("tag ids = %v", store.createdTags[0])
	}
}

func TestMaterializeMonthCarriesVendorAndPaymentMethod(t *testing.T) {
	linked := monthlyRent()
	linked.VendorID = "v-landlord"
	linked.PaymentMethodID = "pm-bank"

	store := newTemplateStore(linked)
	m := NewPlanMaterializer(store)

	if _, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1)); err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}

	et := store.created[0]
	if et.Vendor == nil || et.Vendor.ID != "v-landlord" {
		t.Errorf("vendor = %+v, want id v-landlord", et.Vendor)
	}
	if et.PaymentMethod == nil || et.PaymentMethod.ID != "pm-bank" {
		t.Errorf("payment method = %+v, want id pm-bank", et.PaymentMethod)
	}
}

func TestMaterializeMonthWithoutVendorLeavesLinksNil(t *testing.T) {
	store := newTemplateStore(monthlyRent())
	m := NewPlanMaterializer(store)

	if _, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1)); err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}
	if et := store.created[0]; et.Vendor != nil || et.PaymentMethod != nil {
		t.Errorf("unlinked template produced vendor=%+v payment_method=%+v", et.Vendor, et.PaymentMethod)
	}
}

func TestMaterializeMonthIdempotent(t *testing.T) {
	store := newTemplateStore(monthlyRent())
	m := NewPlanMaterializer(store)

	if _, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	created, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created = %d, want 0", created)
	}
	if len(store.created) != 1 {
		t.Fatalf("store has %d records, want 1", len(store.created))
	}
}

func TestMaterializeMonthSkipsFutureAnchors(t *testing.T) {
	future := monthlyRent()
	future.ID = "tpl-future"
	future.AnchorDate = date(2025, time.June, 1)

	store := newTemplateStore(future)
	m := NewPlanMaterializer(store)

	created, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 for future-anchored template", created)
	}
}

func TestMaterializeMonthSkipsInactiveAndForeignTemplates(t *testing.T) {
	inactive := monthlyRent()
	inactive.ID = "tpl-inactive"
	inactive.Active = false

	foreign := monthlyRent()
	foreign.ID = "tpl-foreign"
	foreign.UserID = "u2"

	store := newTemplateStore(inactive, foreign, monthlyRent())
	m := NewPlanMaterializer(store)

	created, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if store.created[0].TemplateID != "tpl-rent" {
		t.Errorf("materialized wrong template: %s", store.created[0].TemplateID)
	}
}

func TestMaterializeMonthWeeklyCreatesEveryOccurrence(t *testing.T) {
	weekly := monthlyRent()
	weekly.ID = "tpl-groceries"
	weekly.Description = "Groceries"
	weekly.Frequency = core.Weekly
	weekly.AnchorDate = date(2024, time.December, 30)

	store := newTemplateStore(weekly)
	m := NewPlanMaterializer(store)

	created, err := m.MaterializeMonth(context.Background(), "u1", date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("MaterializeMonth: %v", err)
	}
	if created != 4 {
		t.Fatalf("created = %d, want 4 weekly occurrences", created)
	}
}
