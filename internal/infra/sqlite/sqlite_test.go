package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "recurring.db"))
	require.NoError(t, err)
	require.NoError(t, db.Init())
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	d, _ := time.Parse(domain.DateLayout, s)
	return d
}

func TestObligationsCRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	key := obligations.Key{UserID: "user-1", MerchantName: "NETFLIX.COM"}
	_, err := db.FindObligation(ctx, key)
	assert.True(t, errors.Is(err, obligations.ErrNotFound))

	dom := 1
	next := day("2024-04-01")
	now := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	o := &obligations.Obligation{
		ID:                "ob-1",
		UserID:            "user-1",
		MerchantName:      "NETFLIX.COM",
		ObligationType:    domain.ObligationSubscription,
		AvgAmount:         15.99,
		LastAmount:        15.99,
		Frequency:         recurring.FrequencyMonthly,
		IntervalDays:      31,
		DayOfMonth:        &dom,
		NextEstimatedDate: &next,
		FirstSeenDate:     day("2024-01-01"),
		LastSeenDate:      day("2024-03-01"),
		Source:            obligations.SourceTransactions,
		Confidence:        0.79,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, db.InsertObligation(ctx, o))

	found, err := db.FindObligation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ob-1", found.ID)
	assert.Equal(t, domain.ObligationSubscription, found.ObligationType)
	require.NotNil(t, found.DayOfMonth)
	assert.Equal(t, 1, *found.DayOfMonth)
	assert.Nil(t, found.Weekday)
	require.NotNil(t, found.NextEstimatedDate)
	assert.Equal(t, next, *found.NextEstimatedDate)
	assert.True(t, found.CreatedAt.Equal(now))

	found.LastAmount = 17.99
	found.LastSeenDate = day("2024-04-01")
	require.NoError(t, db.UpdateObligation(ctx, found))

	list, err := db.ListObligations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 17.99, list[0].LastAmount)
	assert.Equal(t, day("2024-04-01"), list[0].LastSeenDate)

	// same merchant under another category is a separate obligation
	other := *o
	other.ID = "ob-2"
	other.Category = "Entertainment"
	require.NoError(t, db.InsertObligation(ctx, &other))
	assert.Error(t, db.InsertObligation(ctx, &other))

	list, err = db.ListObligations(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	missing := *o
	missing.ID = "nope"
	assert.True(t, errors.Is(db.UpdateObligation(ctx, &missing), obligations.ErrNotFound))

	require.NoError(t, db.DeleteObligations(ctx, "user-1"))
	list, err = db.ListObligations(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionsImportAndScan(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var records []domain.TransactionRecord
	for i := 0; i < 4; i++ {
		records = append(records, domain.TransactionRecord{
			Date:        day("2024-01-08").AddDate(0, 0, 7*i),
			Description: "Gym Membership Inc",
			Amount:      -25,
			Direction:   domain.FlowOutflow,
		})
	}
	records = append(records, domain.TransactionRecord{
		ID:          "pay-1",
		Date:        day("2024-01-15"),
		Description: "PAYROLL",
		Amount:      2000,
		Direction:   domain.FlowInflow,
	})

	n, err := db.ImportTransactions(ctx, "user-1", records)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all, err := db.ListTransactions(ctx, "user-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	ranged, err := db.ListTransactions(ctx, "user-1", day("2024-01-10"), day("2024-01-22"))
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	svc := obligations.NewService(db, obligations.WithTransactionSource(db))
	res, err := svc.Scan(ctx, "user-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, res.Upserts, 1)
	assert.Equal(t, "GYM MEMBERSHIP", res.Upserts[0].MerchantName)

	list, err := db.ListObligations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recurring.FrequencyWeekly, list[0].Frequency)
	require.NotNil(t, list[0].Weekday)
	assert.Equal(t, time.Monday, *list[0].Weekday)
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Init())

	list, err := db.ListObligations(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportTransactions_ReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// no IDs, as in a plain CSV export
	statement := []domain.TransactionRecord{
		{Date: day("2024-01-01"), Description: "NETFLIX.COM", Amount: -15.99, Direction: domain.FlowOutflow},
		{Date: day("2024-02-01"), Description: "NETFLIX.COM", Amount: -15.99, Direction: domain.FlowOutflow},
		{Date: day("2024-03-01"), Description: "NETFLIX.COM", Amount: -15.99, Direction: domain.FlowOutflow},
		{Date: day("2024-03-02"), Description: "COFFEE", Amount: -3.50, Direction: domain.FlowOutflow},
		{Date: day("2024-03-02"), Description: "COFFEE", Amount: -3.50, Direction: domain.FlowOutflow},
	}

	for i := 0; i < 2; i++ {
		n, err := db.ImportTransactions(ctx, "user-1", statement)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}

	stored, err := db.ListTransactions(ctx, "user-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 5)

	patterns := recurring.DetectRecurringPatterns(stored)
	require.Len(t, patterns, 1)
	assert.Equal(t, "NETFLIX.COM", patterns[0].MerchantName)
	assert.Equal(t, recurring.FrequencyMonthly, patterns[0].Frequency)
	assert.Equal(t, 3, patterns[0].Occurrences)

	// the same rows belong to another user under different IDs
	_, err = db.ImportTransactions(ctx, "user-2", statement)
	require.NoError(t, err)
	other, err := db.ListTransactions(ctx, "user-2", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, other, 5)
	stored, err = db.ListTransactions(ctx, "user-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestTransactionID(t *testing.T) {
	r := domain.TransactionRecord{Date: day("2024-03-02"), Description: "COFFEE", Amount: -3.5, Direction: domain.FlowOutflow}

	assert.Equal(t, transactionID("u1", r, 0), transactionID("u1", r, 0))
	assert.NotEqual(t, transactionID("u1", r, 0), transactionID("u1", r, 1))
	assert.NotEqual(t, transactionID("u1", r, 0), transactionID("u2", r, 0))

	later := r
	later.Date = day("2024-03-03")
	assert.NotEqual(t, transactionID("u1", r, 0), transactionID("u1", later, 0))
}
