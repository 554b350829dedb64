package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/recurring-tracker/internal/bigquery"
)

// Re-export row types and interfaces from the shared package
type TransactionRow = bq.TransactionRow
type ObligationRow = bq.ObligationRow
type TransactionRepository = bq.TransactionRepository
type ObligationRepository = bq.ObligationRepository

// BigQueryTransactionRepository is the concrete implementation of
// TransactionRepository. It holds a shared BigQuery client.
type BigQueryTransactionRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewBigQueryTransactionRepository creates a repository with its own client.
func NewBigQueryTransactionRepository(ctx context.Context, ds Dataset) (*BigQueryTransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: creating client: %w", err)
	}
	return &BigQueryTransactionRepository{client: client, ds: ds}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// QueryTransactionsByUserAndDateRange delegates to the WithClient function with the shared client.
func (r *BigQueryTransactionRepository) QueryTransactionsByUserAndDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByUserAndDateRangeWithClient(ctx, r.client, r.ds, userID, startDate, endDate)
}

// BigQueryObligationRepository is the concrete implementation of
// ObligationRepository. It holds a shared BigQuery client to avoid creating
// a new connection for each operation.
type BigQueryObligationRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewBigQueryObligationRepository creates a repository with its own client.
func NewBigQueryObligationRepository(ctx context.Context, ds Dataset) (*BigQueryObligationRepository, error) {
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryObligationRepository: creating client: %w", err)
	}
	return &BigQueryObligationRepository{client: client, ds: ds}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryObligationRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// FindObligation delegates to FindObligationWithClient with the shared client.
func (r *BigQueryObligationRepository) FindObligation(ctx context.Context, userID, merchantName, category string) (*ObligationRow, error) {
	return FindObligationWithClient(ctx, r.client, r.ds, userID, merchantName, category)
}

// InsertObligation delegates to InsertObligationWithClient with the shared client.
func (r *BigQueryObligationRepository) InsertObligation(ctx context.Context, row *ObligationRow) error {
	return InsertObligationWithClient(ctx, r.client, r.ds, row)
}

// UpdateObligation delegates to UpdateObligationWithClient with the shared client.
func (r *BigQueryObligationRepository) UpdateObligation(ctx context.Context, row *ObligationRow) error {
	return UpdateObligationWithClient(ctx, r.client, r.ds, row)
}

// ListObligationsByUser delegates to ListObligationsByUserWithClient with the shared client.
func (r *BigQueryObligationRepository) ListObligationsByUser(ctx context.Context, userID string) ([]*ObligationRow, error) {
	return ListObligationsByUserWithClient(ctx, r.client, r.ds, userID)
}

// DeleteObligationsByUser delegates to DeleteObligationsByUserWithClient with the shared client.
func (r *BigQueryObligationRepository) DeleteObligationsByUser(ctx context.Context, userID string) error {
	return DeleteObligationsByUserWithClient(ctx, r.client, r.ds, userID)
}
