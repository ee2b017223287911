package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	USD Currency = "USD"
	THB Currency = "THB"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	SGD Currency = "SGD"
	VND Currency = "VND"
	JPY Currency = "JPY"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	StatusPending ExpectedStatus = "pending"
	StatusMatched ExpectedStatus = "matched"
	StatusSkipped ExpectedStatus = "skipped"
	StatusOverdue ExpectedStatus = "overdue"
)

const (
	PlanDraft    PlanStatus = "draft"
	PlanActive   PlanStatus = "active"
	PlanClosed   PlanStatus = "closed"
	PlanArchived PlanStatus = "archived"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	Currency        string
	TransactionType string
	ExpectedStatus  string
	PlanStatus      string
	Frequency       string

	// Tag is the category grouping key. Color is display-only.
	Tag struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	Vendor struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	PaymentMethod struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// MatchedTransaction is the summary of the real transaction an
	// expectation was reconciled against.
	MatchedTransaction struct {
		ID          string          `json:"id"`
		Date        time.Time       `json:"transaction_date"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}

	// MonthPlan is the owner-scoped, month-bounded container that expected
	// transactions belong to. MonthYear is the first day of the month.
	MonthPlan struct {
		ID        string     `json:"id"`
		UserID    string     `json:"user_id"`
		MonthYear time.Time  `json:"month_year"`
		Status    PlanStatus `json:"status"`
	}

	// RecurringTemplate generates one expected transaction per due date when
	// a month plan is materialized.
	RecurringTemplate struct {
		ID              string          `json:"id"`
		UserID          string          `json:"user_id"`
		Description     string          `json:"description"`
		ExpectedAmount  decimal.Decimal `json:"expected_amount"`
		Currency        Currency        `json:"original_currency"`
		TransactionType TransactionType `json:"transaction_type"`
		Frequency       Frequency       `json:"frequency"`
		AnchorDate      time.Time       `json:"anchor_date"`
		VendorID        string          `json:"vendor_id,omitempty"`
		PaymentMethodID string          `json:"payment_method_id,omitempty"`
		TagIDs          []string        `json:"tag_ids,omitempty"`
		Active          bool            `json:"active"`
	}

	// ExpectedTransaction is a planned monetary event awaiting reconciliation
	// against a real transaction. ActualAmount, VarianceAmount and
	// VariancePercentage are populated by the matching process once the
	// status transitions to matched; they stay nil until then.
	ExpectedTransaction struct {
		ID              string          `json:"id"`
		UserID          string          `json:"user_id"`
		TemplateID      string          `json:"template_id,omitempty"`
		MonthPlanID     string          `json:"month_plan_id"`
		Description     string          `json:"description"`
		ExpectedAmount  decimal.Decimal `json:"expected_amount"`
		Currency        Currency        `json:"original_currency"`
		TransactionType TransactionType `json:"transaction_type"`
		ExpectedDate    time.Time       `json:"expected_date"`
		Status          ExpectedStatus  `json:"status"`

		ActualAmount       *decimal.Decimal `json:"actual_amount,omitempty"`
		VarianceAmount     *decimal.Decimal `json:"variance_amount,omitempty"`
		VariancePercentage *float64         `json:"variance_percentage,omitempty"`

		Vendor        *Vendor             `json:"vendor,omitempty"`
		PaymentMethod *PaymentMethod      `json:"payment_method,omitempty"`
		Tags          []Tag               `json:"tags,omitempty"`
		Matched       *MatchedTransaction `json:"matched_transaction,omitempty"`
	}
)

// Uncategorized is the sentinel bucket for expected transactions carrying no
// tags. The fixed id keeps repeated reports stable.
var Uncategorized = Tag{ID: "uncategorized", Name: "Uncategorized", Color: "#9ca3af"}

var (
	ErrNotFound         = errors.New("month plan not found")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyDescription = errors.New("empty description")
)

// Valid reports whether c is one of the supported currency codes.
func (c Currency) Valid() bool {
	switch c {
	case USD, THB, EUR, GBP, SGD, VND, JPY:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (s ExpectedStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusSkipped, StatusOverdue:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// IsMatched reports whether the expectation was reconciled and carries a
// usable actual amount.
func (e ExpectedTransaction) IsMatched() bool {
	return e.Status == StatusMatched && e.ActualAmount != nil
}

// HasVariance reports whether the upstream matcher recorded variance fields.
// Only matched records with both fields present participate in ranking.
func (e ExpectedTransaction) HasVariance() bool {
	return e.Status == StatusMatched && e.VarianceAmount != nil && e.VariancePercentage != nil
}

func (e ExpectedTransaction) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.ExpectedAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if !e.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if !e.TransactionType.Valid() {
		return ErrInvalidType
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	if e.ExpectedDate.IsZero() {
		return errors.New("expected date cannot be zero")
	}
	return nil
}

func (t RecurringTemplate) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if !t.ExpectedAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if !t.TransactionType.Valid() {
		return ErrInvalidType
	}
	if !t.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if t.AnchorDate.IsZero() {
		return errors.New("anchor date cannot be zero")
	}
	return nil
}

// MonthStart truncates ts to the first day of its month in UTC, the canonical
// month_year representation.
func MonthStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthLabel formats a month_year timestamp the way the API exposes it.
func MonthLabel(ts time.Time) string {
	return ts.Format("2006-01-02")
}
