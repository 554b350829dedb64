package bigquery

import (
	"testing"
	"time"
)

func TestDateRangeParams(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end time.Time
		wantFrom   string
		wantTo     string
	}{
		{"both set", jan, mar, "2024-01-01", "2024-03-31"},
		{"no bounds", time.Time{}, time.Time{}, "0001-01-01", "9999-12-31"},
		{"open start", time.Time{}, mar, "0001-01-01", "2024-03-31"},
		{"open end", jan, time.Time{}, "2024-01-01", "9999-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := dateRangeParams(tt.start, tt.end)
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("dateRangeParams() = %s, %s; want %s, %s", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}
