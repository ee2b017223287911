// Package services provides the variance reporting engine and plan
// materialization logic.
//
// This file implements the Strategy Pattern for template scheduling. Each
// frequency type (daily, weekly, monthly, yearly) has its own strategy that
// computes the dates a recurring template falls due within a target month.
package services

import (
	"fmt"
	"time"

	"previsto/internal/core"
)

// ScheduleChecker is the strategy interface for expanding a recurring
// template into its due dates inside one month.
type ScheduleChecker interface {
	// DueDates returns every date in the month starting at monthStart on
	// which a template anchored at anchor falls due. monthStart is the
	// first day of the month in UTC.
	DueDates(monthStart, anchor time.Time) []time.Time
}

// DailyChecker expands to every day of the month.
type DailyChecker struct{}

func (DailyChecker) DueDates(monthStart, _ time.Time) []time.Time {
	days := daysInMonth(monthStart)
	dates := make([]time.Time, 0, days)
	for d := 1; d <= days; d++ {
		dates = append(dates, monthStart.AddDate(0, 0, d-1))
	}
	return dates
}

// WeeklyChecker expands to every 7th day counted from the anchor date.
type WeeklyChecker struct{}

func (WeeklyChecker) DueDates(monthStart, anchor time.Time) []time.Time {
	monthEnd := monthStart.AddDate(0, 1, 0)
	// First occurrence on or after the month start.
	next := anchor
	if next.Before(monthStart) {
		daysSince := int(monthStart.Sub(anchor).Hours() / 24)
		next = anchor.AddDate(0, 0, (daysSince+6)/7*7)
	}
	var dates []time.Time
	for next.Before(monthEnd) {
		if !next.Before(monthStart) {
			dates = append(dates, next)
		}
		next = next.AddDate(0, 0, 7)
	}
	return dates
}

// MonthlyChecker expands to a single date on the anchor's day of month,
// clamped to the last day when the month is shorter (e.g. anchor day 31 in
// February).
type MonthlyChecker struct{}

func (MonthlyChecker) DueDates(monthStart, anchor time.Time) []time.Time {
	day := anchor.Day()
	if last := daysInMonth(monthStart); day > last {
		day = last
	}
	return []time.Time{monthStart.AddDate(0, 0, day-1)}
}

// YearlyChecker expands to a single date only when the target month matches
// the anchor's month, with the same day clamping as MonthlyChecker.
type YearlyChecker struct{}

func (YearlyChecker) DueDates(monthStart, anchor time.Time) []time.Time {
	if monthStart.Month() != anchor.Month() {
		return nil
	}
	day := anchor.Day()
	if last := daysInMonth(monthStart); day > last {
		day = last
	}
	return []time.Time{monthStart.AddDate(0, 0, day-1)}
}

// scheduleStrategies maps frequency types to their corresponding checkers.
var scheduleStrategies = map[core.Frequency]ScheduleChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetScheduleChecker returns the checker for a frequency type.
// Returns an error if the frequency is not supported.
func GetScheduleChecker(frequency core.Frequency) (ScheduleChecker, error) {
	checker, ok := scheduleStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterScheduleChecker allows registering custom checkers for new
// frequency types without modifying this package.
func RegisterScheduleChecker(frequency core.Frequency, checker ScheduleChecker) {
	scheduleStrategies[frequency] = checker
}

func daysInMonth(monthStart time.Time) int {
	return time.Date(monthStart.Year(), monthStart.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
