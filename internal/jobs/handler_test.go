package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/pipeline"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
)

type mockRunner struct {
	got *pipeline.PipelineState
	err error
}

func (m *mockRunner) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	m.got = state
	if m.err != nil {
		return m.err
	}
	state.Result = &obligations.DetectionResult{
		Patterns: make([]recurring.Pattern, 3),
		Upserts:  make([]obligations.UpsertResult, 2),
	}
	state.Reminders = make([]reminder.Reminder, 1)
	return nil
}

type otherJob struct{}

func (otherJob) GetID() string        { return "x" }
func (otherJob) GetType() JobType     { return "other" }
func (otherJob) GetStatus() JobStatus { return JobStatusPending }

func TestDetectRecurringHandler(t *testing.T) {
	runner := &mockRunner{}
	handler := NewDetectRecurringHandler(runner)

	job := &DetectRecurringJob{JobID: "j1", UserID: "user-1", StatementURI: "gs://b/x.csv", HorizonDays: 7}
	require.NoError(t, handler(context.Background(), job))

	assert.Equal(t, "user-1", runner.got.UserID)
	assert.Equal(t, "gs://b/x.csv", runner.got.StatementURI)
	assert.Equal(t, 7, runner.got.HorizonDays)
	assert.Equal(t, 3, job.Patterns)
	assert.Equal(t, 2, job.Upserts)
	assert.Equal(t, 1, job.Reminders)
}

func TestDetectRecurringHandler_Errors(t *testing.T) {
	handler := NewDetectRecurringHandler(&mockRunner{err: errors.New("boom")})
	assert.EqualError(t, handler(context.Background(), &DetectRecurringJob{UserID: "u"}), "boom")
	assert.Error(t, handler(context.Background(), otherJob{}))
}
