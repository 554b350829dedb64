package obligations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/obligations/inmemory"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

const testUser = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

func fixedClock(s string) func() time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return func() time.Time { return t }
}

func monthly(description, category string, start time.Time, n int, amount float64) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, n)
	for i := range out {
		out[i] = domain.TransactionRecord{
			Date:        start.AddDate(0, i, 0),
			Description: description,
			Amount:      -amount,
			Direction:   domain.FlowOutflow,
			Category:    category,
		}
	}
	return out
}

type mockClassifier struct {
	types map[string]domain.ObligationType
	err   error
}

func (m *mockClassifier) Classify(ctx context.Context, merchant string) (domain.ObligationType, error) {
	if m.err != nil {
		return "", m.err
	}
	if t, ok := m.types[merchant]; ok {
		return t, nil
	}
	return domain.ObligationOther, nil
}

type mockSource struct {
	records    []domain.TransactionRecord
	err        error
	gotUser    string
	start, end time.Time
}

func (m *mockSource) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.TransactionRecord, error) {
	m.gotUser, m.start, m.end = userID, start, end
	return m.records, m.err
}

// failingStore rejects inserts for one merchant.
type failingStore struct {
	*inmemory.Store
	merchant string
}

func (f *failingStore) InsertObligation(ctx context.Context, o *obligations.Obligation) error {
	if o.MerchantName == f.merchant {
		return errors.New("insert rejected")
	}
	return f.Store.InsertObligation(ctx, o)
}

func TestService_DetectInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	svc := obligations.NewService(store,
		obligations.WithClock(fixedClock("2024-04-10")),
		obligations.WithClassifier(&mockClassifier{types: map[string]domain.ObligationType{
			"NETFLIX.COM": domain.ObligationSubscription,
		}}),
	)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := monthly("Netflix.com", "Entertainment", start, 3, 15.99)

	first, err := svc.Detect(ctx, testUser, records)
	require.NoError(t, err)
	require.Len(t, first.Upserts, 1)
	assert.True(t, first.Upserts[0].IsNew)
	assert.Equal(t, domain.ObligationSubscription, first.Patterns[0].ObligationType)

	records = append(records, monthly("NETFLIX.COM", "Entertainment", start.AddDate(0, 3, 0), 1, 17.99)...)
	second, err := svc.Detect(ctx, testUser, records)
	require.NoError(t, err)
	require.Len(t, second.Upserts, 1)
	assert.False(t, second.Upserts[0].IsNew)
	assert.Equal(t, first.Upserts[0].ObligationID, second.Upserts[0].ObligationID)

	list, err := svc.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 1)
	o := list[0]
	assert.Equal(t, "NETFLIX.COM", o.MerchantName)
	assert.Equal(t, "Entertainment", o.Category)
	assert.Equal(t, domain.ObligationSubscription, o.ObligationType)
	assert.Equal(t, 17.99, o.LastAmount)
	assert.Equal(t, recurring.FrequencyMonthly, o.Frequency)
	assert.Equal(t, obligations.SourceTransactions, o.Source)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), o.LastSeenDate)
	require.NotNil(t, o.NextEstimatedDate)
	assert.False(t, o.NextEstimatedDate.Before(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, o.CreatedAt.IsZero())
}

func TestService_DetectSkipsUnknownFrequency(t *testing.T) {
	store := inmemory.NewStore()
	svc := obligations.NewService(store, obligations.WithClock(fixedClock("2024-06-01")))

	var records []domain.TransactionRecord
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		records = append(records, domain.TransactionRecord{
			Date:        start.AddDate(0, 0, i*50),
			Description: "ANNUAL-ISH",
			Amount:      -99,
			Direction:   domain.FlowOutflow,
		})
	}

	res, err := svc.Detect(context.Background(), testUser, records)
	require.NoError(t, err)
	assert.Len(t, res.Patterns, 1)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Upserts)

	list, err := store.ListObligations(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_DetectContinuesPastStoreErrors(t *testing.T) {
	store := &failingStore{Store: inmemory.NewStore(), merchant: "HYDRO ONE"}
	svc := obligations.NewService(store, obligations.WithClock(fixedClock("2024-06-01")))

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	records := append(monthly("Hydro One", "", start, 4, 80), monthly("Spotify", "", start, 4, 9.99)...)

	res, err := svc.Detect(context.Background(), testUser, records)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Upserts, 1)
	assert.Equal(t, "SPOTIFY", res.Upserts[0].MerchantName)
}

func TestService_ClassifierErrorFallsBackToOther(t *testing.T) {
	svc := obligations.NewService(inmemory.NewStore(),
		obligations.WithClassifier(&mockClassifier{err: errors.New("model unavailable")}),
	)

	records := monthly("Netflix.com", "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, 15.99)
	res, err := svc.Detect(context.Background(), testUser, records)
	require.NoError(t, err)
	require.Len(t, res.Patterns, 1)
	assert.Equal(t, domain.ObligationOther, res.Patterns[0].ObligationType)
}

func TestService_DetectRequiresUser(t *testing.T) {
	svc := obligations.NewService(inmemory.NewStore())
	_, err := svc.Detect(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestService_Scan(t *testing.T) {
	src := &mockSource{records: monthly("Rent", "Housing", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, 1200)}
	svc := obligations.NewService(inmemory.NewStore(), obligations.WithTransactionSource(src))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	res, err := svc.Scan(context.Background(), testUser, start, end)
	require.NoError(t, err)
	assert.Len(t, res.Upserts, 1)
	assert.Equal(t, testUser, src.gotUser)
	assert.Equal(t, start, src.start)
	assert.Equal(t, end, src.end)
}

func TestService_ScanErrors(t *testing.T) {
	_, err := obligations.NewService(inmemory.NewStore()).Scan(context.Background(), testUser, time.Time{}, time.Time{})
	assert.Error(t, err)

	src := &mockSource{err: errors.New("warehouse down")}
	_, err = obligations.NewService(inmemory.NewStore(), obligations.WithTransactionSource(src)).
		Scan(context.Background(), testUser, time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "warehouse down")
}

func TestNextEstimatedDate(t *testing.T) {
	d := func(s string) time.Time {
		v, _ := time.Parse(domain.DateLayout, s)
		return v
	}

	tests := []struct {
		name     string
		last     string
		interval int
		now      string
		want     string
	}{
		{"next cycle in future", "2024-03-01", 31, "2024-03-10", "2024-04-01"},
		{"rolls past missed cycles", "2024-01-01", 7, "2024-02-01", "2024-02-05"},
		{"due today stays today", "2024-01-01", 7, "2024-01-08", "2024-01-08"},
		{"future last date", "2024-05-01", 14, "2024-01-01", "2024-05-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := obligations.NextEstimatedDate(d(tt.last), tt.interval, d(tt.now))
			require.NotNil(t, got)
			assert.Equal(t, d(tt.want), *got)
		})
	}

	assert.Nil(t, obligations.NextEstimatedDate(d("2024-01-01"), 0, d("2024-02-01")))
	assert.Nil(t, obligations.NextEstimatedDate(time.Time{}, 7, d("2024-02-01")))
}

func TestService_Upcoming(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	d := func(s string) time.Time {
		v, _ := time.Parse(domain.DateLayout, s)
		return v
	}

	seed := []obligations.Obligation{
		{ID: "1", UserID: testUser, MerchantName: "RENT", Frequency: recurring.FrequencyMonthly, IntervalDays: 30, LastSeenDate: d("2024-05-01")},
		{ID: "2", UserID: testUser, MerchantName: "GYM", Frequency: recurring.FrequencyWeekly, IntervalDays: 7, LastSeenDate: d("2024-05-20")},
		{ID: "3", UserID: testUser, MerchantName: "INSURANCE", Frequency: recurring.FrequencyMonthly, IntervalDays: 30, LastSeenDate: d("2024-05-25")},
		{ID: "4", UserID: "someone-else-entirely", MerchantName: "RENT", Frequency: recurring.FrequencyMonthly, IntervalDays: 30, LastSeenDate: d("2024-05-01")},
	}
	for i := range seed {
		require.NoError(t, store.InsertObligation(ctx, &seed[i]))
	}

	svc := obligations.NewService(store, obligations.WithClock(fixedClock("2024-05-28")))
	upcoming, err := svc.Upcoming(ctx, testUser, 14)
	require.NoError(t, err)

	// RENT due 05-31, GYM rolled to 06-03, INSURANCE due 06-24 is beyond the horizon
	require.Len(t, upcoming, 2)
	assert.Equal(t, "RENT", upcoming[0].Obligation.MerchantName)
	assert.Equal(t, d("2024-05-31"), upcoming[0].DueDate)
	assert.Equal(t, 3, upcoming[0].DaysUntil)
	assert.Equal(t, "GYM", upcoming[1].Obligation.MerchantName)
	assert.Equal(t, d("2024-06-03"), upcoming[1].DueDate)

	all, err := svc.Upcoming(ctx, testUser, 30)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
