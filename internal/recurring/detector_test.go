package recurring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

func date(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func tx(day, description string, amount float64, tag string) domain.TransactionRecord {
	return domain.TransactionRecord{
		Date:        date(day),
		Description: description,
		Amount:      amount,
		Direction:   domain.ParseFlowDirection(tag),
	}
}

// series returns n outflows for description spaced gap days apart.
func series(description string, start string, gap, n int, amount float64) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, n)
	d := date(start)
	for i := range out {
		out[i] = domain.TransactionRecord{
			Date:        d.AddDate(0, 0, i*gap),
			Description: description,
			Amount:      -amount,
			Direction:   domain.FlowOutflow,
		}
	}
	return out
}

func TestDetect_MonthlySubscription(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-01", "NETFLIX.COM", 15.99, "Debit"),
		tx("2024-02-01", "NETFLIX.COM", 15.99, "Debit"),
		tx("2024-03-01", "NETFLIX.COM", 15.99, "Debit"),
	}

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "NETFLIX.COM", p.MerchantName)
	assert.Equal(t, FrequencyMonthly, p.Frequency)
	assert.Equal(t, domain.ObligationOther, p.ObligationType)
	assert.Equal(t, 15.99, p.AvgAmount)
	assert.Equal(t, 15.99, p.LastAmount)
	assert.Equal(t, 0.0, p.AmountVariance)
	require.NotNil(t, p.DayOfMonth)
	assert.Equal(t, 1, *p.DayOfMonth)
	assert.Nil(t, p.Weekday)
	assert.Equal(t, 31, p.IntervalDays)
	assert.Equal(t, date("2024-01-01"), p.FirstSeenDate)
	assert.Equal(t, date("2024-03-01"), p.LastSeenDate)
	assert.Equal(t, 3, p.Occurrences)
	assert.Equal(t, 0.79, p.Confidence)
}

func TestDetect_TwoTransactionsOnly(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-01", "RARE STORE", 42, "expense"),
		tx("2024-02-01", "RARE STORE", 42, "expense"),
	}

	patterns := DetectRecurringPatterns(txs)

	assert.NotNil(t, patterns)
	assert.Empty(t, patterns)
}

func TestDetect_WeeklyGym(t *testing.T) {
	// 2024-01-01 is a Monday
	txs := series("GYM MEMBERSHIP INC", "2024-01-01", 7, 5, 25)

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "GYM MEMBERSHIP", p.MerchantName)
	assert.Equal(t, FrequencyWeekly, p.Frequency)
	require.NotNil(t, p.Weekday)
	assert.Equal(t, time.Monday, *p.Weekday)
	assert.Nil(t, p.DayOfMonth)
	assert.Equal(t, 7, p.IntervalDays)
	assert.Greater(t, p.Confidence, 0.8)
	assert.Equal(t, 0.93, p.Confidence)
}

func TestDetect_VaryingAmountsScoreLower(t *testing.T) {
	random := []domain.TransactionRecord{
		tx("2024-01-05", "RANDOM SHOP", 5, "expense"),
		tx("2024-02-04", "RANDOM SHOP", 340, "expense"),
		tx("2024-03-05", "RANDOM SHOP", 12, "expense"),
	}
	gym := series("GYM MEMBERSHIP INC", "2024-01-01", 7, 5, 25)

	randomScore := analyzeGroup("RANDOM SHOP", random, DefaultOptions()).Confidence
	gymScore := analyzeGroup("GYM MEMBERSHIP", gym, DefaultOptions()).Confidence

	assert.Less(t, randomScore, gymScore-0.3)

	for _, p := range DetectRecurringPatterns(random) {
		assert.GreaterOrEqual(t, p.Confidence, 0.5)
	}
}

func TestDetect_VaryingAmountsBelowThreshold(t *testing.T) {
	// one uneven gap plus unrelated amounts drops the score under 0.5
	txs := []domain.TransactionRecord{
		tx("2024-01-05", "RANDOM SHOP", 5, "expense"),
		tx("2024-02-04", "RANDOM SHOP", 340, "expense"),
		tx("2024-03-15", "RANDOM SHOP", 12, "expense"),
	}

	p := analyzeGroup("RANDOM SHOP", append([]domain.TransactionRecord(nil), txs...), DefaultOptions())
	assert.Less(t, p.Confidence, 0.5)
	assert.Empty(t, DetectRecurringPatterns(txs))
}

func TestDetect_EmptyInput(t *testing.T) {
	assert.Empty(t, DetectRecurringPatterns(nil))
	assert.Empty(t, DetectRecurringPatterns([]domain.TransactionRecord{}))
}

func TestDetect_MedianIgnoresSkippedCycle(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-01", "CITY WATER", 60, "Debit"),
		tx("2024-01-31", "CITY WATER", 60, "Debit"), // +30
		tx("2024-03-02", "CITY WATER", 60, "Debit"), // +31
		tx("2024-05-03", "CITY WATER", 60, "Debit"), // +62
	}

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, FrequencyMonthly, p.Frequency)
	assert.Equal(t, 31, p.IntervalDays)
	assert.Equal(t, 0.69, p.Confidence)
	require.NotNil(t, p.DayOfMonth)
	// days 1, 31, 2 and 3 each occur once; the lowest wins
	assert.Equal(t, 1, *p.DayOfMonth)
}

func TestDetect_FrequencyBoundaries(t *testing.T) {
	tests := []struct {
		gap  int
		want Frequency
	}{
		{4, FrequencyUnknown},
		{5, FrequencyWeekly},
		{9, FrequencyWeekly},
		{10, FrequencyBiweekly},
		{18, FrequencyBiweekly},
		{19, FrequencyUnknown},
		{25, FrequencyUnknown},
		{26, FrequencyMonthly},
		{35, FrequencyMonthly},
		{36, FrequencyUnknown},
		{90, FrequencyUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			patterns := DetectRecurringPatterns(series("ACME", "2024-01-10", tt.gap, 3, 10))

			require.Len(t, patterns, 1)
			assert.Equal(t, tt.want, patterns[0].Frequency, "gap %d", tt.gap)
			assert.Equal(t, tt.gap, patterns[0].IntervalDays)
			if tt.want == FrequencyUnknown {
				assert.Nil(t, patterns[0].Weekday)
				assert.Nil(t, patterns[0].DayOfMonth)
			}
		})
	}
}

func TestDetect_QuarterlyOption(t *testing.T) {
	txs := series("HOME INSURANCE CO", "2024-01-15", 91, 4, 300)

	assert.Equal(t, FrequencyUnknown, DetectRecurringPatterns(txs)[0].Frequency)

	opts := DefaultOptions()
	opts.Quarterly = true
	patterns := Detect(txs, opts)
	require.Len(t, patterns, 1)
	assert.Equal(t, FrequencyQuarterly, patterns[0].Frequency)
	assert.Equal(t, "HOME INSURANCE", patterns[0].MerchantName)
	require.NotNil(t, patterns[0].DayOfMonth)
}

func TestDetect_SynonymTags(t *testing.T) {
	debitOnly := []domain.TransactionRecord{
		tx("2024-01-03", "Spotify", 9.99, "Debit"),
		tx("2024-02-03", "Spotify", 9.99, "Debit"),
		tx("2024-03-03", "Spotify", 9.99, "Debit"),
		tx("2024-04-03", "Spotify", 9.99, "Debit"),
	}
	mixed := []domain.TransactionRecord{
		tx("2024-01-03", "Spotify", 9.99, "expense"),
		tx("2024-02-03", "Spotify", 9.99, "Debit"),
		tx("2024-03-03", "Spotify", 9.99, "expense"),
		tx("2024-04-03", "Spotify", 9.99, "Debit"),
	}

	want := DetectRecurringPatterns(debitOnly)
	require.Len(t, want, 1)
	assert.Equal(t, want, DetectRecurringPatterns(mixed))
}

func TestDetect_IgnoresInflows(t *testing.T) {
	txs := append(
		series("EMPLOYER PAYROLL", "2024-01-05", 14, 6, 2000),
		tx("2024-01-10", "SOMEWHERE", 5, "expense"),
		tx("2024-01-11", "ELSEWHERE", 6, "expense"),
	)
	for i := 0; i < 6; i++ {
		txs[i].Direction = domain.FlowInflow
	}

	assert.Empty(t, DetectRecurringPatterns(txs))
}

func TestDetect_TooFewOutflowsOverall(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-01", "RENT", 1200, "expense"),
		tx("2024-02-01", "RENT", 1200, "expense"),
		tx("2024-03-01", "RENT", 1200, "income"),
		tx("2024-03-01", "RENT", 1200, "transfer"),
	}

	assert.Empty(t, DetectRecurringPatterns(txs))
}

func TestDetect_TwoOccurrenceGate(t *testing.T) {
	txs := append(series("NETFLIX", "2024-01-01", 30, 6, 15.99), series("RARE STORE", "2024-01-01", 30, 2, 10)...)

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 1)
	assert.Equal(t, "NETFLIX", patterns[0].MerchantName)
}

func TestDetect_OccurrenceScoreMonotonic(t *testing.T) {
	prev := 0.0
	for n := 3; n <= 9; n++ {
		patterns := DetectRecurringPatterns(series("STREAMING", "2024-01-01", 7, n, 12))
		require.Len(t, patterns, 1)
		c := patterns[0].Confidence
		if n <= 6 {
			assert.Greater(t, c, prev, "n=%d", n)
		} else {
			assert.Equal(t, prev, c, "n=%d", n)
		}
		prev = c
	}
	assert.Equal(t, 1.0, prev)
}

func TestDetect_GroupsNormalizedMerchants(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-10", "Acme  Corp", 50, "expense"),
		tx("2024-02-10", " ACME CORP.", 50, "expense"),
		tx("2024-03-10", "acme", 50, "expense"),
	}

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 1)
	assert.Equal(t, "ACME", patterns[0].MerchantName)
	assert.Equal(t, 3, patterns[0].Occurrences)
}

func TestDetect_SortedByMerchant(t *testing.T) {
	var txs []domain.TransactionRecord
	txs = append(txs, series("ZOOM", "2024-01-01", 30, 3, 15)...)
	txs = append(txs, series("APPLE MUSIC", "2024-01-01", 30, 3, 10)...)
	txs = append(txs, series("HYDRO ONE", "2024-01-01", 30, 3, 80)...)

	patterns := DetectRecurringPatterns(txs)

	require.Len(t, patterns, 3)
	assert.Equal(t, "APPLE MUSIC", patterns[0].MerchantName)
	assert.Equal(t, "HYDRO ONE", patterns[1].MerchantName)
	assert.Equal(t, "ZOOM", patterns[2].MerchantName)
}

func TestDetect_DoesNotMutateInput(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-03-01", "NETFLIX.COM", 15.99, "Debit"),
		tx("2024-01-01", "NETFLIX.COM", 15.99, "Debit"),
		tx("2024-02-01", "NETFLIX.COM", 15.99, "Debit"),
	}
	before := append([]domain.TransactionRecord(nil), txs...)

	DetectRecurringPatterns(txs)

	assert.Equal(t, before, txs)
}

func TestDetect_SameDayPaymentsUnknown(t *testing.T) {
	txs := []domain.TransactionRecord{
		tx("2024-01-01", "PARKING", 3, "expense"),
		tx("2024-01-01", "PARKING", 3, "expense"),
		tx("2024-01-01", "PARKING", 3, "expense"),
	}

	// zero median gap gives no interval consistency: 0.2 + 0.3 + 0
	patterns := DetectRecurringPatterns(txs)
	require.Len(t, patterns, 1)
	assert.Equal(t, FrequencyUnknown, patterns[0].Frequency)
	assert.Equal(t, 0, patterns[0].IntervalDays)
	assert.Equal(t, 0.5, patterns[0].Confidence)

	opts := DefaultOptions()
	opts.MinConfidence = 0.51
	assert.Empty(t, Detect(txs, opts))
}

func TestDetect_DropsOverflowingAmounts(t *testing.T) {
	huge := series("WIRE TRANSFER", "2024-01-01", 31, 3, 1e308)

	var patterns []Pattern
	require.NotPanics(t, func() { patterns = DetectRecurringPatterns(huge) })
	assert.Empty(t, patterns)

	txs := series("NETFLIX.COM", "2024-01-01", 31, 3, 15.99)
	txs = append(txs,
		domain.TransactionRecord{Date: date("2024-01-15"), Description: "NETFLIX.COM", Amount: math.NaN(), Direction: domain.FlowOutflow},
		domain.TransactionRecord{Date: date("2024-02-15"), Description: "NETFLIX.COM", Amount: math.Inf(-1), Direction: domain.FlowOutflow},
	)
	patterns = DetectRecurringPatterns(txs)
	require.Len(t, patterns, 1)
	assert.Equal(t, FrequencyMonthly, patterns[0].Frequency)
	assert.Equal(t, 3, patterns[0].Occurrences)
	assert.Equal(t, 15.99, patterns[0].AvgAmount)
}
