package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCurrencyValid(t *testing.T) {
	for _, c := range []Currency{USD, THB, EUR, GBP, SGD, VND, JPY} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	for _, c := range []Currency{"", "usd", "CHF"} {
		if c.Valid() {
			t.Errorf("%q should be invalid", c)
		}
	}
}

func TestIsMatched(t *testing.T) {
	amount := decimal.NewFromInt(100)

	tests := []struct {
		name string
		et   ExpectedTransaction
		want bool
	}{
		{"matched with amount", ExpectedTransaction{Status: StatusMatched, ActualAmount: &amount}, true},
		{"matched without amount", ExpectedTransaction{Status: StatusMatched}, false},
		{"pending with amount", ExpectedTransaction{Status: StatusPending, ActualAmount: &amount}, false},
		{"skipped", ExpectedTransaction{Status: StatusSkipped}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.et.IsMatched(); got != tt.want {
				t.Errorf("IsMatched() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpectedTransactionValidate(t *testing.T) {
	valid := ExpectedTransaction{
		Description:     "Rent",
		ExpectedAmount:  decimal.NewFromInt(1000),
		Currency:        USD,
		TransactionType: Expense,
		Status:          StatusPending,
		ExpectedDate:    time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExpectedTransaction)
		want   error
	}{
		{"empty description", func(e *ExpectedTransaction) { e.Description = "  " }, ErrEmptyDescription},
		{"negative amount", func(e *ExpectedTransaction) { e.ExpectedAmount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"bad currency", func(e *ExpectedTransaction) { e.Currency = "XXX" }, ErrInvalidCurrency},
		{"bad type", func(e *ExpectedTransaction) { e.TransactionType = "transfer" }, ErrInvalidType},
		{"bad status", func(e *ExpectedTransaction) { e.Status = "done" }, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			et := valid
			tt.mutate(&et)
			if err := et.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	zeroAmount := valid
	zeroAmount.ExpectedAmount = decimal.Zero
	if err := zeroAmount.Validate(); err != nil {
		t.Errorf("zero expected amount should be allowed: %v", err)
	}
}

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2025, 3, 17, 22, 45, 0, 0, loc)
	got := MonthStart(ts)
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("MonthStart = %v, want %v", got, want)
	}
	if MonthLabel(got) != "2025-03-01" {
		t.Errorf("MonthLabel = %s", MonthLabel(got))
	}
}

func TestUncategorizedSentinel(t *testing.T) {
	if Uncategorized.ID != "uncategorized" || Uncategorized.Name != "Uncategorized" || Uncategorized.Color != "#9ca3af" {
		t.Errorf("sentinel changed: %+v", Uncategorized)
	}
}
