package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	calls int32
}

func (p *countingPruner) Prune() int {
	atomic.AddInt32(&p.calls, 1)
	return 2
}

func TestPruneCacheJob(t *testing.T) {
	pruner := &countingPruner{}

	require.NoError(t, PruneCache(pruner)(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&pruner.calls))
}

func TestRegisterErrors(t *testing.T) {
	s := NewScheduler()
	noop := func(ctx context.Context) error { return nil }

	assert.Error(t, s.Register("bad", "every now and then", noop))
	require.NoError(t, s.Register("a", "@hourly", noop))
	assert.Error(t, s.Register("a", "@daily", noop))
	assert.Len(t, s.ListJobs(), 1)
}

func TestRunJobReturnsFailure(t *testing.T) {
	boom := errors.New("boom")
	job := &Job{Name: "fails", Func: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "jobs run under a timeout")
		return boom
	}}

	assert.ErrorIs(t, NewScheduler().runJob(job), boom)
}

func TestListJobsReportsNextRun(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Register("b", "@every 1h", func(ctx context.Context) error { return nil }))
	require.NoError(t, s.Register("a", "@every 30m", func(ctx context.Context) error { return nil }))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "@every 30m", jobs[0].Schedule)
	assert.Nil(t, jobs[0].NextRun)

	s.Start()
	defer s.Stop()

	jobs = s.ListJobs()
	require.NotNil(t, jobs[0].NextRun)
	require.NotNil(t, jobs[1].NextRun)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *jobs[0].NextRun, time.Minute)
	assert.True(t, jobs[1].NextRun.After(*jobs[0].NextRun))
}

func TestScheduledJobRuns(t *testing.T) {
	s := NewScheduler()
	pruner := &countingPruner{}
	require.NoError(t, s.Register("prune-forecast-cache", "@every 1s", PruneCache(pruner)))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&pruner.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)
}
