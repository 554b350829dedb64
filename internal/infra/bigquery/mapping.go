package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

// TransactionRowToRecord converts a warehouse row into a detector record.
// Rows without a direction are classified by the sign of their amount.
func TransactionRowToRecord(row *TransactionRow) domain.TransactionRecord {
	var amount float64
	if row.Amount != nil {
		amount, _ = row.Amount.Float64()
	}

	direction := domain.FlowUnknown
	if row.Direction.Valid {
		direction = domain.ParseFlowDirection(row.Direction.StringVal)
	}
	if direction == domain.FlowUnknown {
		switch {
		case amount < 0:
			direction = domain.FlowOutflow
		case amount > 0:
			direction = domain.FlowInflow
		}
	}

	description := row.RawDescription
	if row.NormalizedDescription.Valid && strings.TrimSpace(row.NormalizedDescription.StringVal) != "" {
		description = row.NormalizedDescription.StringVal
	}

	rec := domain.TransactionRecord{
		ID:          row.TransactionID,
		Date:        row.TransactionDate.In(time.UTC),
		Description: description,
		Amount:      amount,
		Direction:   direction,
	}
	if row.CategoryName.Valid {
		rec.Category = row.CategoryName.StringVal
	}
	return rec
}

// ObligationToRow converts an obligation into its BigQuery row.
func ObligationToRow(o *obligations.Obligation) *ObligationRow {
	row := &ObligationRow{
		ObligationID:   o.ID,
		UserID:         o.UserID,
		MerchantName:   o.MerchantName,
		Category:       bigquery.NullString{StringVal: o.Category, Valid: o.Category != ""},
		ObligationType: string(o.ObligationType),
		AvgAmount:      toNumeric(o.AvgAmount),
		AmountVariance: o.AmountVariance,
		LastAmount:     toNumeric(o.LastAmount),
		Frequency:      string(o.Frequency),
		IntervalDays:   bigquery.NullInt64{Int64: int64(o.IntervalDays), Valid: o.IntervalDays > 0},
		FirstSeenDate:  civil.DateOf(o.FirstSeenDate),
		LastSeenDate:   civil.DateOf(o.LastSeenDate),
		Source:         o.Source,
		Confidence:     o.Confidence,
		CreatedTS:      o.CreatedAt,
		UpdatedTS:      o.UpdatedAt,
	}
	if o.DayOfMonth != nil {
		row.DayOfMonth = bigquery.NullInt64{Int64: int64(*o.DayOfMonth), Valid: true}
	}
	if o.Weekday != nil {
		row.Weekday = bigquery.NullInt64{Int64: int64(*o.Weekday), Valid: true}
	}
	if o.NextEstimatedDate != nil {
		row.NextEstimatedDate = bigquery.NullDate{Date: civil.DateOf(*o.NextEstimatedDate), Valid: true}
	}
	return row
}

// RowToObligation converts a BigQuery row back into an obligation.
func RowToObligation(row *ObligationRow) obligations.Obligation {
	o := obligations.Obligation{
		ID:             row.ObligationID,
		UserID:         row.UserID,
		MerchantName:   row.MerchantName,
		ObligationType: domain.ObligationType(row.ObligationType),
		AvgAmount:      fromNumeric(row.AvgAmount),
		AmountVariance: row.AmountVariance,
		LastAmount:     fromNumeric(row.LastAmount),
		Frequency:      recurring.ParseFrequency(row.Frequency),
		FirstSeenDate:  row.FirstSeenDate.In(time.UTC),
		LastSeenDate:   row.LastSeenDate.In(time.UTC),
		Source:         row.Source,
		Confidence:     row.Confidence,
		CreatedAt:      row.CreatedTS,
		UpdatedAt:      row.UpdatedTS,
	}
	if row.Category.Valid {
		o.Category = row.Category.StringVal
	}
	if row.IntervalDays.Valid {
		o.IntervalDays = int(row.IntervalDays.Int64)
	}
	if row.DayOfMonth.Valid {
		d := int(row.DayOfMonth.Int64)
		o.DayOfMonth = &d
	}
	if row.Weekday.Valid {
		wd := time.Weekday(row.Weekday.Int64)
		o.Weekday = &wd
	}
	if row.NextEstimatedDate.Valid {
		next := row.NextEstimatedDate.Date.In(time.UTC)
		o.NextEstimatedDate = &next
	}
	return o
}

// toNumeric converts a cent-rounded amount into a NUMERIC value.
func toNumeric(v float64) *big.Rat {
	return decimal.NewFromFloat(v).Round(2).Rat()
}

func fromNumeric(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	return decimal.NewFromBigRat(r, 2).InexactFloat64()
}

// TransactionSource adapts a TransactionRepository to obligations.TransactionSource.
type TransactionSource struct {
	repo TransactionRepository
}

// NewTransactionSource wraps repo.
func NewTransactionSource(repo TransactionRepository) *TransactionSource {
	return &TransactionSource{repo: repo}
}

// ListTransactions implements obligations.TransactionSource.
func (s *TransactionSource) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.TransactionRecord, error) {
	rows, err := s.repo.QueryTransactionsByUserAndDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	records := make([]domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, TransactionRowToRecord(row))
	}
	return records, nil
}

// ObligationStore adapts an ObligationRepository to obligations.Store.
type ObligationStore struct {
	repo ObligationRepository
}

// NewObligationStore wraps repo.
func NewObligationStore(repo ObligationRepository) *ObligationStore {
	return &ObligationStore{repo: repo}
}

// FindObligation implements obligations.Store.
func (s *ObligationStore) FindObligation(ctx context.Context, key obligations.Key) (*obligations.Obligation, error) {
	row, err := s.repo.FindObligation(ctx, key.UserID, key.MerchantName, key.Category)
	if err != nil {
		return nil, fmt.Errorf("FindObligation: %w", err)
	}
	if row == nil {
		return nil, obligations.ErrNotFound
	}
	o := RowToObligation(row)
	return &o, nil
}

// InsertObligation implements obligations.Store.
func (s *ObligationStore) InsertObligation(ctx context.Context, o *obligations.Obligation) error {
	if o.ID == "" {
		return errors.New("InsertObligation: obligation ID is required")
	}
	return s.repo.InsertObligation(ctx, ObligationToRow(o))
}

// UpdateObligation implements obligations.Store.
func (s *ObligationStore) UpdateObligation(ctx context.Context, o *obligations.Obligation) error {
	return s.repo.UpdateObligation(ctx, ObligationToRow(o))
}

// ListObligations implements obligations.Store.
func (s *ObligationStore) ListObligations(ctx context.Context, userID string) ([]obligations.Obligation, error) {
	rows, err := s.repo.ListObligationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListObligations: %w", err)
	}
	out := make([]obligations.Obligation, 0, len(rows))
	for _, row := range rows {
		out = append(out, RowToObligation(row))
	}
	return out, nil
}

var (
	_ obligations.Store             = (*ObligationStore)(nil)
	_ obligations.TransactionSource = (*TransactionSource)(nil)
)
