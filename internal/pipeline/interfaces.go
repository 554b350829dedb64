package pipeline

import (
	"context"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/statement"
)

// StatementLoader reads a statement export from a local path or gs:// URI.
type StatementLoader interface {
	Load(ctx context.Context, src string) (*statement.Result, error)
}

// TransactionImporter persists records read from a statement export.
type TransactionImporter interface {
	ImportTransactions(ctx context.Context, userID string, records []domain.TransactionRecord) (int, error)
}

// ObligationService detects obligations and reports the ones coming due.
// *obligations.Service satisfies it.
type ObligationService interface {
	Detect(ctx context.Context, userID string, records []domain.TransactionRecord) (*obligations.DetectionResult, error)
	Upcoming(ctx context.Context, userID string, horizonDays int) ([]obligations.Upcoming, error)
}

var _ ObligationService = (*obligations.Service)(nil)
