package pipeline

import (
	"time"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// Default values for scheduled scans. These can be overridden via configuration.
const (
	// DefaultLookbackDays covers a year of history plus one quarter so
	// quarterly payments collect enough occurrences.
	DefaultLookbackDays = 455

	// DefaultHorizonDays is how far ahead reminders look.
	DefaultHorizonDays = obligations.DefaultHorizonDays
)

// LookbackWindow returns the scan range ending on now's calendar date.
func LookbackWindow(now time.Time, lookbackDays int) (start, end time.Time) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	end = domain.CalendarDate(now)
	return end.AddDate(0, 0, -lookbackDays), end
}
