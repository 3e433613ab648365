package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeHistory struct {
	before time.Time
}

func (h *fakeHistory) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	h.before = before
	return 3, nil
}

type fakeJobs struct {
	before time.Time
}

func (j *fakeJobs) PurgeFinished(before time.Time) int {
	j.before = before
	return 1
}

func TestScheduler_RunsTasks(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))

	var runs, failures int32
	require.NoError(t, s.AddTask("counter", "@every 100ms", time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	require.NoError(t, s.AddTask("failing", "* * * * * *", time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&failures, 1)
		return errors.New("boom")
	}))
	require.NoError(t, s.AddTask("panicking", "@every 100ms", 0, func(ctx context.Context) error {
		panic("bad task")
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2 && atomic.LoadInt32(&failures) >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_AddTaskValidation(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))
	noop := func(context.Context) error { return nil }

	require.Error(t, s.AddTask("bad", "not a cron", 0, noop))
	require.NoError(t, s.AddTask("hourly", "0 0 * * * *", 0, noop))
	require.ErrorIs(t, s.AddTask("hourly", "0 0 * * * *", 0, noop), ErrDuplicateTask)

	s.Start()
	defer s.Stop()

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hourly", entries[0].Name)
	assert.Equal(t, 0, entries[0].Next.Minute())
}

func TestRetentionTasks(t *testing.T) {
	history := &fakeHistory{}
	require.NoError(t, HistoryRetention(history, 48*time.Hour)(context.Background()))
	assert.WithinDuration(t, time.Now().Add(-48*time.Hour), history.before, time.Second)

	jobs := &fakeJobs{}
	require.NoError(t, JobPurge(jobs, time.Hour, zaptest.NewLogger(t))(context.Background()))
	assert.WithinDuration(t, time.Now().Add(-time.Hour), jobs.before, time.Second)
}
