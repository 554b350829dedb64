package recurring

import (
	"math/rand"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

var propertyMerchants = []string{"NETFLIX.COM", "Gym Membership Inc", "CITY WATER", "corner shop"}
var propertyTags = []string{"expense", "Debit", "income"}

// decode turns generated codes into a transaction history over a few
// merchants, mixing outflow tags and inflows.
func decode(codes []int) []domain.TransactionRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := make([]domain.TransactionRecord, len(codes))
	for i, c := range codes {
		txs[i] = domain.TransactionRecord{
			ID:          strconv.Itoa(i),
			Date:        start.AddDate(0, 0, (c/7)%200),
			Description: propertyMerchants[c%len(propertyMerchants)],
			Amount:      -(10 + float64(c%5)),
			Direction:   domain.ParseFlowDirection(propertyTags[(c/3)%len(propertyTags)]),
		}
	}
	return txs
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

func TestProperty_ShuffleIdempotence(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("detection ignores input order", prop.ForAll(
		func(codes []int, seed int64) bool {
			txs := decode(codes)
			want := DetectRecurringPatterns(txs)

			shuffled := append([]domain.TransactionRecord(nil), txs...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			return reflect.DeepEqual(want, DetectRecurringPatterns(shuffled))
		},
		gen.SliceOf(gen.IntRange(0, 5000)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_EmittedPatternsRespectGates(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("emitted patterns pass both gates", prop.ForAll(
		func(codes []int) bool {
			for _, p := range DetectRecurringPatterns(decode(codes)) {
				if p.Occurrences < 3 || p.Confidence < 0.5 || p.Confidence > 1 {
					return false
				}
				if p.Weekday != nil && p.DayOfMonth != nil {
					return false
				}
				if p.LastSeenDate.Before(p.FirstSeenDate) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.TestingRun(t)
}

func TestProperty_PairsNeverEmitted(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("a merchant seen twice is never reported", prop.ForAll(
		func(gap int, amount float64, filler []int) bool {
			txs := decode(filler)
			pair := series("TWICE ONLY", "2024-02-01", gap, 2, amount)
			txs = append(txs, pair...)

			for _, p := range DetectRecurringPatterns(txs) {
				if p.MerchantName == "TWICE ONLY" {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 60),
		gen.Float64Range(1, 500),
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.TestingRun(t)
}
