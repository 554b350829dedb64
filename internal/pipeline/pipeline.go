package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
	"github.com/dvloznov/recurring-tracker/internal/statement"
)

// PipelineStep represents a single step in the scan pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID string

	// StatementURI, when set, is read instead of the stored transactions.
	StatementURI string
	Start        time.Time
	End          time.Time
	HorizonDays  int

	Records   []domain.TransactionRecord
	Skipped   []statement.RowError
	Imported  int
	Result    *obligations.DetectionResult
	Upcoming  []obligations.Upcoming
	Reminders []reminder.Reminder
}

// Deps are the collaborators the standard scan pipeline needs. Loader and
// Importer are only used for statement scans.
type Deps struct {
	Loader   StatementLoader
	Source   obligations.TransactionSource
	Importer TransactionImporter
	Service  ObligationService
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx).With().Str("user", logger.MaskUserID(state.UserID)).Logger()
	ctx = logger.WithContext(ctx, log)

	for i, step := range p.steps {
		log.Debug().Int("step", i+1).Str("name", fmt.Sprintf("%T", step)).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewRecurringScanPipeline creates the standard pipeline: load transactions,
// import them when they came from a statement, detect and upsert
// obligations, then build reminders for what is coming due.
func NewRecurringScanPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&LoadTransactionsStep{Loader: deps.Loader, Source: deps.Source},
		&ImportTransactionsStep{Importer: deps.Importer},
		&DetectObligationsStep{Service: deps.Service},
		&UpcomingStep{Service: deps.Service},
		&BuildRemindersStep{},
	)
}
