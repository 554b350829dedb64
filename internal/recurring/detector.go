// Package recurring finds merchants that a user pays on a regular schedule.
//
// The detector is a pure function over an in-memory slice of transactions:
// it filters outflows, groups them by a normalized merchant key, derives a
// period from the median gap between payments and scores each group by how
// many times it occurred and how stable its amounts and gaps are.
package recurring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

// Frequency is the payment period inferred from the median gap.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyUnknown   Frequency = "unknown"
)

// Confidence weights.
const (
	occurrenceWeight     = 0.4
	amountWeight         = 0.3
	intervalWeight       = 0.3
	occurrenceSaturation = 6
)

// Pattern is one recurring payment candidate.
type Pattern struct {
	MerchantName   string                `json:"merchant_name"`
	ObligationType domain.ObligationType `json:"obligation_type"`
	AvgAmount      float64               `json:"avg_amount"`
	AmountVariance float64               `json:"amount_variance"`
	LastAmount     float64               `json:"last_amount"`
	Frequency      Frequency             `json:"frequency"`
	DayOfMonth     *int                  `json:"day_of_month,omitempty"` // monthly only
	Weekday        *time.Weekday         `json:"weekday,omitempty"`      // weekly and biweekly only
	IntervalDays   int                   `json:"interval_days"`
	FirstSeenDate  time.Time             `json:"first_seen_date"`
	LastSeenDate   time.Time             `json:"last_seen_date"`
	Occurrences    int                   `json:"occurrences"`
	Confidence     float64               `json:"confidence"`
}

// Options tunes the detection gates.
type Options struct {
	MinOutflows    int     // fewer outflows overall short-circuits to an empty result
	MinOccurrences int     // smaller merchant groups are skipped
	MinConfidence  float64 // lower-scoring groups are not emitted
	Quarterly      bool    // classify 85-95 day gaps as quarterly instead of unknown
}

// DefaultOptions returns the standard gates: three payments and a 0.5 score.
func DefaultOptions() Options {
	return Options{
		MinOutflows:    3,
		MinOccurrences: 3,
		MinConfidence:  0.5,
	}
}

// DetectRecurringPatterns runs detection with DefaultOptions.
func DetectRecurringPatterns(transactions []domain.TransactionRecord) []Pattern {
	return Detect(transactions, DefaultOptions())
}

// Detect returns the recurring payment patterns found in transactions,
// ordered by merchant name. The input is not modified and its order does not
// affect the result.
func Detect(transactions []domain.TransactionRecord, opts Options) []Pattern {
	groups := groupOutflows(transactions)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total < opts.MinOutflows {
		return []Pattern{}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patterns := []Pattern{}
	for _, key := range keys {
		group := groups[key]
		if len(group) < opts.MinOccurrences || len(group) < 2 {
			continue
		}
		p := analyzeGroup(key, group, opts)
		if p.Confidence < opts.MinConfidence {
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// groupOutflows keeps outflow transactions and buckets them by merchant key.
// Descriptions that normalize to an empty key and amounts rejected by
// domain.CheckAmount are dropped.
func groupOutflows(transactions []domain.TransactionRecord) map[string][]domain.TransactionRecord {
	groups := make(map[string][]domain.TransactionRecord)
	for _, tx := range transactions {
		if !tx.Direction.IsOutflow() || domain.CheckAmount(tx.Amount) != nil {
			continue
		}
		key := NormalizeMerchant(tx.Description)
		if key == "" {
			continue
		}
		tx.Date = domain.CalendarDate(tx.Date)
		groups[key] = append(groups[key], tx)
	}
	return groups
}

// sortGroup orders by date. Same-day payments are ordered by amount and then
// by raw description so that the result never depends on input order.
func sortGroup(group []domain.TransactionRecord) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if math.Abs(a.Amount) != math.Abs(b.Amount) {
			return math.Abs(a.Amount) < math.Abs(b.Amount)
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return a.ID < b.ID
	})
}

// analyzeGroup computes the statistics and score for one merchant group of
// at least two transactions. It does not apply the confidence gate.
func analyzeGroup(key string, group []domain.TransactionRecord, opts Options) Pattern {
	sortGroup(group)

	amounts := make([]float64, len(group))
	for i, tx := range group {
		amounts[i] = math.Abs(tx.Amount)
	}
	avg := mean(amounts)
	amountVar := variance(amounts, avg)
	amountConsistency := consistency(math.Sqrt(amountVar), avg)

	gaps := make([]int, len(group)-1)
	gapValues := make([]float64, len(gaps))
	for i := 1; i < len(group); i++ {
		days := int(math.Round(group[i].Date.Sub(group[i-1].Date).Hours() / 24))
		gaps[i-1] = days
		gapValues[i-1] = float64(days)
	}
	median := medianGap(gaps)
	intervalConsistency := consistency(math.Sqrt(variance(gapValues, float64(median))), float64(median))

	occurrenceScore := math.Min(float64(len(group))/occurrenceSaturation, 1)
	confidence := occurrenceWeight*occurrenceScore +
		amountWeight*amountConsistency +
		intervalWeight*intervalConsistency

	p := Pattern{
		MerchantName:   key,
		ObligationType: domain.ObligationOther,
		AvgAmount:      round2(avg),
		AmountVariance: round2(amountVar),
		LastAmount:     round2(amounts[len(amounts)-1]),
		Frequency:      classifyInterval(median, opts.Quarterly),
		IntervalDays:   median,
		FirstSeenDate:  group[0].Date,
		LastSeenDate:   group[len(group)-1].Date,
		Occurrences:    len(group),
		Confidence:     round2(confidence),
	}

	switch p.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		days := make([]int, len(group))
		for i, tx := range group {
			days[i] = int(tx.Date.Weekday())
		}
		wd := time.Weekday(mostCommon(days))
		p.Weekday = &wd
	case FrequencyMonthly, FrequencyQuarterly:
		days := make([]int, len(group))
		for i, tx := range group {
			days[i] = tx.Date.Day()
		}
		dom := mostCommon(days)
		p.DayOfMonth = &dom
	}

	return p
}

// classifyInterval buckets a median gap in days.
func classifyInterval(days int, quarterly bool) Frequency {
	switch {
	case days >= 5 && days <= 9:
		return FrequencyWeekly
	case days >= 10 && days <= 18:
		return FrequencyBiweekly
	case days >= 26 && days <= 35:
		return FrequencyMonthly
	case quarterly && days >= 85 && days <= 95:
		return FrequencyQuarterly
	default:
		return FrequencyUnknown
	}
}

// ParseFrequency maps a stored frequency label back to a Frequency.
func ParseFrequency(s string) Frequency {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly:
		return f
	default:
		return FrequencyUnknown
	}
}
