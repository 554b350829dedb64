package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/recurring-tracker/internal/pipeline"
)

// Runner executes a scan pipeline. *pipeline.Pipeline satisfies it.
type Runner interface {
	Execute(ctx context.Context, state *pipeline.PipelineState) error
}

// NewDetectRecurringHandler returns a JobHandler that runs each
// DetectRecurringJob through runner and records its outcome on the job.
func NewDetectRecurringHandler(runner Runner) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*DetectRecurringJob)
		if !ok {
			return fmt.Errorf("unsupported job type %q", job.GetType())
		}

		state := &pipeline.PipelineState{
			UserID:       j.UserID,
			StatementURI: j.StatementURI,
			Start:        j.Start,
			End:          j.End,
			HorizonDays:  j.HorizonDays,
		}
		if err := runner.Execute(ctx, state); err != nil {
			return err
		}

		if state.Result != nil {
			j.Patterns = len(state.Result.Patterns)
			j.Upserts = len(state.Result.Upserts)
		}
		j.Reminders = len(state.Reminders)
		return nil
	}
}
