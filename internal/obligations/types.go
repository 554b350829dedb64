package obligations

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

// SourceTransactions marks obligations derived from transaction history.
const SourceTransactions = "transactions"

// ErrNotFound is returned by stores when no obligation matches a key.
var ErrNotFound = errors.New("obligation not found")

// Obligation is a stored recurring payment for one user.
type Obligation struct {
	ID                string                `json:"id"`
	UserID            string                `json:"user_id"`
	MerchantName      string                `json:"merchant_name"`
	Category          string                `json:"category,omitempty"` // empty when the source transactions had none
	ObligationType    domain.ObligationType `json:"obligation_type"`
	AvgAmount         float64               `json:"avg_amount"`
	AmountVariance    float64               `json:"amount_variance"`
	LastAmount        float64               `json:"last_amount"`
	Frequency         recurring.Frequency   `json:"frequency"`
	IntervalDays      int                   `json:"interval_days"`
	DayOfMonth        *int                  `json:"day_of_month,omitempty"`
	Weekday           *time.Weekday         `json:"weekday,omitempty"`
	NextEstimatedDate *time.Time            `json:"next_estimated_date,omitempty"`
	FirstSeenDate     time.Time             `json:"first_seen_date"`
	LastSeenDate      time.Time             `json:"last_seen_date"`
	Source            string                `json:"source"`
	Confidence        float64               `json:"confidence"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// Key returns the identity an obligation is upserted under.
func (o *Obligation) Key() Key {
	return Key{UserID: o.UserID, MerchantName: o.MerchantName, Category: o.Category}
}

// Key identifies an obligation: one per user, merchant and category.
type Key struct {
	UserID       string
	MerchantName string
	Category     string
}

// Store persists obligations.
type Store interface {
	// FindObligation returns ErrNotFound when no obligation has the key.
	FindObligation(ctx context.Context, key Key) (*Obligation, error)
	InsertObligation(ctx context.Context, o *Obligation) error
	UpdateObligation(ctx context.Context, o *Obligation) error
	ListObligations(ctx context.Context, userID string) ([]Obligation, error)
}

// TransactionSource loads a user's transactions for a date range. A zero
// start or end leaves that side of the range open.
type TransactionSource interface {
	ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.TransactionRecord, error)
}

// Classifier refines the generic obligation type of a merchant.
type Classifier interface {
	Classify(ctx context.Context, merchantName string) (domain.ObligationType, error)
}

// UpsertResult reports what happened to one detected pattern.
type UpsertResult struct {
	ObligationID string `json:"obligation_id"`
	MerchantName string `json:"merchant_name"`
	IsNew        bool   `json:"is_new"`
}

// DetectionResult summarizes one detection run for a user.
type DetectionResult struct {
	Patterns []recurring.Pattern `json:"patterns"`
	Upserts  []UpsertResult      `json:"upserts"`
	Skipped  int                 `json:"skipped"` // patterns without a usable frequency
	Failed   int                 `json:"failed"`  // patterns the store rejected
}

// Upcoming is an obligation due within the reminder horizon.
type Upcoming struct {
	Obligation Obligation `json:"obligation"`
	DueDate    time.Time  `json:"due_date"`
	DaysUntil  int        `json:"days_until"`
}
