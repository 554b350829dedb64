package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/recurring-tracker/internal/jobs"
	"github.com/dvloznov/recurring-tracker/internal/logger"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*jobs.DetectRecurringJob
	failFor   string
	closed    bool
}

func (p *recordingPublisher) PublishDetectRecurring(ctx context.Context, job *jobs.DetectRecurringJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return jobs.ErrQueueClosed
	}
	if job.UserID == p.failFor {
		return errors.New("boom")
	}
	p.published = append(p.published, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestScheduler(pub jobs.Publisher, users ...string) *scheduler {
	return &scheduler{
		publisher:    pub,
		users:        users,
		lookbackDays: 90,
		horizonDays:  14,
		now:          func() time.Time { return time.Date(2024, 3, 25, 18, 45, 0, 0, time.UTC) },
		log:          logger.NewWithWriter(io.Discard),
	}
}

func TestSchedulerRound(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestScheduler(pub, "user-1", "user-2")

	assert.Equal(t, 2, s.round(context.Background()))
	require.Len(t, pub.published, 2)

	job := pub.published[0]
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), job.End)
	assert.Equal(t, time.Date(2023, 12, 26, 0, 0, 0, 0, time.UTC), job.Start)
	assert.Equal(t, 14, job.HorizonDays)
	assert.Empty(t, job.StatementURI)
}

func TestSchedulerRound_ContinuesPastFailures(t *testing.T) {
	pub := &recordingPublisher{failFor: "user-1"}
	s := newTestScheduler(pub, "user-1", "user-2")

	assert.Equal(t, 1, s.round(context.Background()))
	require.Len(t, pub.published, 1)
	assert.Equal(t, "user-2", pub.published[0].UserID)
}

func TestSchedulerRound_StopsWhenClosed(t *testing.T) {
	pub := &recordingPublisher{closed: true}
	s := newTestScheduler(pub, "user-1", "user-2")
	assert.Equal(t, 0, s.round(context.Background()))
}

func TestSchedulerRun_StopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestScheduler(pub, "user-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.run(ctx, time.Hour)
		close(done)
	}()

	// the first round runs immediately
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
