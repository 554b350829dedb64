package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
)

// Step 1: LoadTransactionsStep reads the statement export when one is given,
// otherwise the user's stored transactions for the scan range.
type LoadTransactionsStep struct {
	Loader StatementLoader
	Source obligations.TransactionSource
}

func (s *LoadTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.StatementURI != "" {
		if s.Loader == nil {
			return fmt.Errorf("load transactions: no statement loader configured")
		}
		res, err := s.Loader.Load(ctx, state.StatementURI)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		state.Records = res.Records
		state.Skipped = res.Skipped
		return nil
	}

	if s.Source == nil {
		return fmt.Errorf("load transactions: no transaction source configured")
	}
	records, err := s.Source.ListTransactions(ctx, state.UserID, state.Start, state.End)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	state.Records = records
	return nil
}

// Step 2: ImportTransactionsStep stores records read from a statement so
// later scheduled scans see them. Stored-transaction scans skip it.
type ImportTransactionsStep struct {
	Importer TransactionImporter
}

func (s *ImportTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.StatementURI == "" || s.Importer == nil || len(state.Records) == 0 {
		return nil
	}
	n, err := s.Importer.ImportTransactions(ctx, state.UserID, state.Records)
	if err != nil {
		return fmt.Errorf("import transactions: %w", err)
	}
	state.Imported = n
	log := logger.FromContext(ctx)
	log.Info().Int("imported", n).Msg("Imported statement transactions")
	return nil
}

// Step 3: DetectObligationsStep runs detection and upserts the results.
type DetectObligationsStep struct {
	Service ObligationService
}

func (s *DetectObligationsStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Service.Detect(ctx, state.UserID, state.Records)
	if err != nil {
		return fmt.Errorf("detect obligations: %w", err)
	}
	state.Result = res
	return nil
}

// Step 4: UpcomingStep lists the obligations due within the horizon.
type UpcomingStep struct {
	Service ObligationService
}

func (s *UpcomingStep) Execute(ctx context.Context, state *PipelineState) error {
	horizon := state.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	upcoming, err := s.Service.Upcoming(ctx, state.UserID, horizon)
	if err != nil {
		return fmt.Errorf("upcoming obligations: %w", err)
	}
	state.Upcoming = upcoming
	return nil
}

// Step 5: BuildRemindersStep writes notification text for upcoming obligations.
type BuildRemindersStep struct{}

func (s *BuildRemindersStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Reminders = reminder.BuildAll(state.Upcoming)
	log := logger.FromContext(ctx)
	for _, r := range state.Reminders {
		log.Info().
			Str("merchant", logger.TruncateMerchant(r.MerchantName)).
			Int("days_until", r.DaysUntil).
			Str("title", r.Title).
			Msg("Reminder ready")
	}
	return nil
}
