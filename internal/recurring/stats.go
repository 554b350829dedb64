package recurring

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance of values around center.
func variance(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - center
		sum += d * d
	}
	return sum / float64(len(values))
}

// medianGap returns the element at index len/2 of the sorted gaps, so an
// even-length input yields the upper of the two middle values.
func medianGap(gaps []int) int {
	if len(gaps) == 0 {
		return 0
	}
	sorted := append([]int(nil), gaps...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// mostCommon returns the most frequent value. Ties go to the lowest value.
func mostCommon(values []int) int {
	counts := make(map[int]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	best, bestCount := 0, 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

// consistency maps a coefficient of variation onto [0,1], 1 meaning no spread.
func consistency(stdDev, center float64) float64 {
	if center <= 0 || math.IsNaN(stdDev) {
		return 0
	}
	return 1 - math.Min(stdDev/center, 1)
}

// round2 rounds half away from zero to two decimal places. Non-finite
// values are returned unchanged.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
