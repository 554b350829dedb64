package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FlowDirection tells whether money left or entered the account.
// Upstream producers tag transactions inconsistently ("expense", "Debit",
// "OUT"); every producer maps its tag through ParseFlowDirection so that
// downstream code only ever sees these three values.
type FlowDirection string

const (
	FlowOutflow FlowDirection = "outflow"
	FlowInflow  FlowDirection = "inflow"
	FlowUnknown FlowDirection = "unknown"
)

// DateLayout is the calendar date format used at every boundary.
const DateLayout = "2006-01-02"

// MaxAbsAmount bounds transaction amounts. Sums and squared deviations of
// amounts below it stay finite.
const MaxAbsAmount = 1e12

// CheckAmount rejects amounts that are not finite or exceed MaxAbsAmount.
func CheckAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount is not a finite number")
	}
	if math.Abs(amount) > MaxAbsAmount {
		return fmt.Errorf("amount %g is out of range", amount)
	}
	return nil
}

// ParseFlowDirection normalizes an upstream type tag.
func ParseFlowDirection(tag string) FlowDirection {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "expense", "debit", "out", "outflow", "withdrawal", "payment":
		return FlowOutflow
	case "income", "credit", "in", "inflow", "deposit", "refund":
		return FlowInflow
	default:
		return FlowUnknown
	}
}

// IsOutflow reports whether the direction represents money leaving the account.
func (d FlowDirection) IsOutflow() bool {
	return d == FlowOutflow
}

// TransactionRecord is one posted transaction as seen by the recurring
// payment detector.
type TransactionRecord struct {
	ID          string
	Date        time.Time // calendar date, time of day ignored
	Description string
	Amount      float64 // sign convention varies by source
	Direction   FlowDirection
	Category    string // optional, carried through to stored obligations
}

// RecordFromTags builds a record from the string fields upstream producers
// hand over. The date may be a plain YYYY-MM-DD date or an RFC3339 timestamp.
func RecordFromTags(id, date, description string, amount float64, tag string) (TransactionRecord, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("RecordFromTags: %w", err)
	}
	if err := CheckAmount(amount); err != nil {
		return TransactionRecord{}, fmt.Errorf("RecordFromTags: %w", err)
	}
	return TransactionRecord{
		ID:          id,
		Date:        d,
		Description: description,
		Amount:      amount,
		Direction:   ParseFlowDirection(tag),
	}, nil
}

// ParseDate parses an ISO date or timestamp and truncates it to a UTC
// calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return CalendarDate(t), nil
}

// CalendarDate drops the time of day, keeping the date as written.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
