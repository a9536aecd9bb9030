package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/jobstore/memstore"
)

type fixedTrigger struct{ at time.Time }

func (f fixedTrigger) NextFireTime(after time.Time) (time.Time, bool) {
	if after.Before(f.at) {
		return f.at, true
	}
	return time.Time{}, false
}

func newJob(id core.JobID, runAt time.Time) *core.Job {
	return &core.Job{
		ID:           id,
		Name:         string(id),
		CallableRef:  core.NamedCallable{Name: "noop"},
		Trigger:      fixedTrigger{at: runAt},
		MaxInstances: 1,
		NextRunTime:  &runAt,
	}
}

func TestAddLookupRemove(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	runAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := newJob("a", runAt)

	require.NoError(t, s.AddJob(ctx, job))

	got, err := s.LookupJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	require.Error(t, s.AddJob(ctx, newJob("a", runAt)))

	require.NoError(t, s.RemoveJob(ctx, "a"))
	_, err = s.LookupJob(ctx, "a")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestDueScanOrdersByNextRunTime(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddJob(ctx, newJob("late", base.Add(2*time.Minute))))
	require.NoError(t, s.AddJob(ctx, newJob("early", base.Add(1*time.Minute))))

	due, err := s.DueScan(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, core.JobID("early"), due[0].ID)

	due, err = s.DueScan(ctx, base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, core.JobID("late"), due[0].ID)
}

func TestGetNextRunTimeSkipsRetired(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddJob(ctx, newJob("only", base)))

	_, err := s.ModifyJob(ctx, "only", core.JobChanges{NextRunTime: ptr((*time.Time)(nil))})
	require.NoError(t, err)

	_, ok, err := s.GetNextRunTime(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveAllJobs(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddJob(ctx, newJob("a", base)))
	require.NoError(t, s.AddJob(ctx, newJob("b", base)))

	removed, err := s.RemoveAllJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := s.GetAllJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func ptr[T any](v T) *T { return &v }
