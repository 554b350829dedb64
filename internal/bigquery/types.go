package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// TransactionRepository provides read access to the transactions warehouse.
type TransactionRepository interface {
	// QueryTransactionsByUserAndDateRange returns a user's settled transactions
	// dated within [startDate, endDate].
	QueryTransactionsByUserAndDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*TransactionRow, error)
}

// ObligationRepository provides an interface for recurring obligation storage.
type ObligationRepository interface {
	// FindObligation returns the obligation for (user, merchant, category), or
	// nil without error when none exists. An empty category matches NULL.
	FindObligation(ctx context.Context, userID, merchantName, category string) (*ObligationRow, error)

	// InsertObligation inserts a new obligation row.
	InsertObligation(ctx context.Context, row *ObligationRow) error

	// UpdateObligation overwrites the mutable columns of an existing row.
	UpdateObligation(ctx context.Context, row *ObligationRow) error

	// ListObligationsByUser returns all obligations for a user.
	ListObligationsByUser(ctx context.Context, userID string) ([]*ObligationRow, error)

	// DeleteObligationsByUser removes every obligation of a user.
	DeleteObligationsByUser(ctx context.Context, userID string) error
}

// TransactionRow represents a transaction record in BigQuery.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id" json:"transaction_id"`

	UserID    string `bigquery:"user_id" json:"user_id"`
	AccountID string `bigquery:"account_id" json:"account_id"`

	TransactionDate civil.Date        `bigquery:"transaction_date" json:"transaction_date"`
	PostingDate     bigquery.NullDate `bigquery:"posting_date" json:"posting_date,omitempty"`

	Amount   *big.Rat `bigquery:"amount" json:"amount"`
	Currency string   `bigquery:"currency" json:"currency"`

	// IN or OUT; older loads left it NULL and relied on the amount sign.
	Direction bigquery.NullString `bigquery:"direction" json:"direction,omitempty"`

	RawDescription        string              `bigquery:"raw_description" json:"raw_description"`
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description" json:"normalized_description,omitempty"`

	CategoryName    bigquery.NullString `bigquery:"category_name" json:"category_name,omitempty"`
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name" json:"subcategory_name,omitempty"`

	IsPending          bigquery.NullBool `bigquery:"is_pending" json:"is_pending,omitempty"`
	IsInternalTransfer bigquery.NullBool `bigquery:"is_internal_transfer" json:"is_internal_transfer,omitempty"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// MarshalJSON customizes JSON serialization for TransactionRow.
func (t TransactionRow) MarshalJSON() ([]byte, error) {
	type Alias TransactionRow
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		*Alias
	}{
		Amount: func() string {
			if t.Amount == nil {
				return "0"
			}
			f, _ := t.Amount.Float64()
			return fmt.Sprintf("%.2f", f)
		}(),
		Alias: (*Alias)(&t),
	})
}

// ObligationRow represents a row of the recurring_obligations table.
type ObligationRow struct {
	ObligationID string              `bigquery:"obligation_id"`
	UserID       string              `bigquery:"user_id"`
	MerchantName string              `bigquery:"merchant_name"`
	Category     bigquery.NullString `bigquery:"category"`

	ObligationType string `bigquery:"obligation_type"`

	AvgAmount      *big.Rat `bigquery:"avg_amount"`  // NUMERIC
	AmountVariance float64  `bigquery:"amount_variance"`
	LastAmount     *big.Rat `bigquery:"last_amount"` // NUMERIC

	Frequency    string             `bigquery:"frequency"`
	IntervalDays bigquery.NullInt64 `bigquery:"interval_days"`
	DayOfMonth   bigquery.NullInt64 `bigquery:"day_of_month"`
	Weekday      bigquery.NullInt64 `bigquery:"weekday"` // 0 = Sunday

	NextEstimatedDate bigquery.NullDate `bigquery:"next_estimated_date"`
	FirstSeenDate     civil.Date        `bigquery:"first_seen_date"`
	LastSeenDate      civil.Date        `bigquery:"last_seen_date"`

	Source     string  `bigquery:"source"`
	Confidence float64 `bigquery:"confidence"`

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}
