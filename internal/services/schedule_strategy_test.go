package services

import (
	"testing"
	"time"

	"previsto/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDailyCheckerCoversWholeMonth(t *testing.T) {
	dates := DailyChecker{}.DueDates(date(2025, time.February, 1), date(2024, time.June, 10))
	if len(dates) != 28 {
		t.Fatalf("february 2025 should have 28 due dates, got %d", len(dates))
	}
	if !dates[0].Equal(date(2025, time.February, 1)) {
		t.Errorf("first date = %v", dates[0])
	}
	if !dates[27].Equal(date(2025, time.February, 28)) {
		t.Errorf("last date = %v", dates[27])
	}
}

func TestWeeklyChecker(t *testing.T) {
	tests := []struct {
		name       string
		monthStart time.Time
		anchor     time.Time
		want       []time.Time
	}{
		{
			name:       "anchor before month",
			monthStart: date(2025, time.January, 1),
			anchor:     date(2024, time.December, 30), // Monday
			want: []time.Time{
				date(2025, time.January, 6),
				date(2025, time.January, 13),
				date(2025, time.January, 20),
				date(2025, time.January, 27),
			},
		},
		{
			name:       "anchor inside month",
			monthStart: date(2025, time.January, 1),
			anchor:     date(2025, time.January, 20),
			want: []time.Time{
				date(2025, time.January, 20),
				date(2025, time.January, 27),
			},
		},
		{
			name:       "anchor exactly on month start",
			monthStart: date(2025, time.January, 1),
			anchor:     date(2025, time.January, 1),
			want: []time.Time{
				date(2025, time.January, 1),
				date(2025, time.January, 8),
				date(2025, time.January, 15),
				date(2025, time.January, 22),
				date(2025, time.January, 29),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeeklyChecker{}.DueDates(tt.monthStart, tt.anchor)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d dates %v, want %d", len(got), got, len(tt.want))
			}
			for i := range tt.want {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("date[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMonthlyCheckerClampsDay(t *testing.T) {
	// Anchor on the 31st, target month February: clamp to the 28th.
	dates := MonthlyChecker{}.DueDates(date(2025, time.February, 1), date(2024, time.January, 31))
	if len(dates) != 1 {
		t.Fatalf("expected 1 due date, got %d", len(dates))
	}
	if !dates[0].Equal(date(2025, time.February, 28)) {
		t.Errorf("due date = %v, want 2025-02-28", dates[0])
	}

	dates = MonthlyChecker{}.DueDates(date(2025, time.March, 1), date(2024, time.January, 15))
	if len(dates) != 1 || !dates[0].Equal(date(2025, time.March, 15)) {
		t.Errorf("due date = %v, want 2025-03-15", dates)
	}
}

func TestYearlyChecker(t *testing.T) {
	anchor := date(2023, time.July, 4)

	if dates := (YearlyChecker{}).DueDates(date(2025, time.June, 1), anchor); dates != nil {
		t.Errorf("non-anniversary month should yield nothing, got %v", dates)
	}

	dates := YearlyChecker{}.DueDates(date(2025, time.July, 1), anchor)
	if len(dates) != 1 || !dates[0].Equal(date(2025, time.July, 4)) {
		t.Errorf("due date = %v, want 2025-07-04", dates)
	}
}

func TestGetScheduleChecker(t *testing.T) {
	for _, freq := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetScheduleChecker(freq); err != nil {
			t.Errorf("GetScheduleChecker(%s): %v", freq, err)
		}
	}
	if _, err := GetScheduleChecker("fortnightly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
