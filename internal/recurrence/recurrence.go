// Package recurrence computes how a completed recurring task schedules its successor.
package recurrence

import "time"

// Period is the recurrence cadence of a task.
type Period string

const (
	Monthly      Period = "Monthly"
	Every3Months Period = "Every 3 months"
	Every6Months Period = "Every 6 months"
	Yearly       Period = "Yearly"
)

// Periods lists every valid cadence in display order.
var Periods = []Period{Monthly, Every3Months, Every6Months, Yearly}

// IsValidPeriod reports exact membership in Periods. Matching is case sensitive.
func IsValidPeriod(p Period) bool {
	for _, valid := range Periods {
		if p == valid {
			return true
		}
	}
	return false
}

// NextOccurrence returns current advanced by one period, or nil when current is nil
// or the period is unknown.
//
// Month arithmetic uses time.AddDate, so an overflowing day normalizes into the
// following month (Jan 31 + 1 month = Mar 3, or Mar 2 in leap years).
func NextOccurrence(current *time.Time, p Period) *time.Time {
	if current == nil {
		return nil
	}

	var next time.Time
	switch p {
	case Monthly:
		next = current.AddDate(0, 1, 0)
	case Every3Months:
		next = current.AddDate(0, 3, 0)
	case Every6Months:
		next = current.AddDate(0, 6, 0)
	case Yearly:
		next = current.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &next
}
