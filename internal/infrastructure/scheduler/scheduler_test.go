package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "fake job " + j.name }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func newTestScheduler() *Scheduler {
	return NewScheduler(DefaultSchedulerConfig())
}

func TestRegister_Validation(t *testing.T) {
	s := newTestScheduler()

	assert.ErrorIs(t, s.Register(nil, "@every 1m"), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "bad"}, "every minute"), ErrInvalidSchedule)

	require.NoError(t, s.Register(&fakeJob{name: "a"}, "*/5 * * * *"))
	assert.ErrorIs(t, s.Register(&fakeJob{name: "a"}, "@hourly"), ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Unregister("missing"), ErrJobNotFound)
	require.NoError(t, s.Unregister("a"))
	assert.Empty(t, s.ListJobs())
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "ok"}
	require.NoError(t, s.Register(job, "@every 1h"))

	result, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.True(t, result.Manual)
	assert.Equal(t, "ok", result.JobName)
	assert.Equal(t, int32(1), job.runs.Load())

	info, err := s.GetJobInfo("ok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Zero(t, info.FailCount)
	require.NotNil(t, info.LastResult)
	assert.True(t, info.LastResult.Success)

	assert.Len(t, s.GetHistory(10), 1)
	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.InDelta(t, 1.0, snap.SuccessRate, 0.0001)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNow_FailureCallsHook(t *testing.T) {
	s := newTestScheduler()
	jobErr := errors.New("no database")
	require.NoError(t, s.Register(&fakeJob{name: "fails", err: jobErr}, "@every 1h"))

	var hooked string
	s.OnJobError(func(name string, err error) {
		hooked = name
		assert.ErrorIs(t, err, jobErr)
	})

	result, err := s.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, jobErr)
	assert.False(t, result.Success)
	assert.Equal(t, "fails", hooked)

	info, err := s.GetJobInfo("fails")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.FailCount)

	m := s.GetMetrics()
	assert.Equal(t, int64(1), m.Snapshot().TotalFailures)
	m.mu.RLock()
	assert.Equal(t, int64(1), m.FailuresByJob["fails"])
	m.mu.RUnlock()
}

func TestRunNow_RecoversPanic(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&fakeJob{name: "panics", panic: true}, "@every 1h"))

	result, err := s.RunNow(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, result.Success)
}

func TestHistory_IsBounded(t *testing.T) {
	s := NewScheduler(SchedulerConfig{MaxHistorySize: 2})
	require.NoError(t, s.Register(&fakeJob{name: "ok"}, "@every 1h"))

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "ok")
		require.NoError(t, err)
	}
	assert.Len(t, s.GetHistory(0), 2)
	assert.Len(t, s.GetHistory(1), 1)
}

func TestLifecycle(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&fakeJob{name: "tick"}, "@every 1h"))

	assert.ErrorIs(t, s.Stop(context.Background()), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool {
		jobs := s.ListJobs()
		return len(jobs) == 1 && !jobs[0].NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)

	jobs := s.ListJobs()
	assert.Equal(t, "@every 1h", jobs[0].Schedule)
	assert.WithinDuration(t, time.Now().Add(time.Hour), jobs[0].NextRun, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestScheduledRun_FiresOnTick(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "fast"}
	require.NoError(t, s.Register(job, "@every 1s"))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	history := s.GetHistory(1)
	require.Len(t, history, 1)
	assert.False(t, history[0].Manual)
}
