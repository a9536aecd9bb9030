package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/jobstore/memstore"
)

// intervalTrigger fires every `every`, starting at `start`, with no end
// bound — enough to drive the coalesce/misfire/max-instances scenarios
// without pulling in the concrete internal/trigger package.
type intervalTrigger struct {
	start time.Time
	every time.Duration
}

func (t intervalTrigger) NextFireTime(after time.Time) (time.Time, bool) {
	if after.Before(t.start) {
		return t.start, true
	}
	steps := after.Sub(t.start)/t.every + 1
	return t.start.Add(steps * t.every), true
}

// onceTrigger fires exactly once, at `at`.
type onceTrigger struct{ at time.Time }

func (t onceTrigger) NextFireTime(after time.Time) (time.Time, bool) {
	if after.Before(t.at) {
		return t.at, true
	}
	return time.Time{}, false
}

// recordingExecutor is a core.Executor test double: Submit enforces
// MaxInstances itself (like httpexec) and completion is driven
// manually via complete(), so tests can hold a batch "in flight" across
// several ProcessDue passes (spec.md §8 scenario 4).
type recordingExecutor struct {
	mu        sync.Mutex
	inFlight  map[core.JobID]int
	submitted []core.Run
	results   chan<- core.RunResult
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{inFlight: make(map[core.JobID]int)}
}

func (e *recordingExecutor) Start(ctx context.Context, results chan<- core.RunResult) error {
	e.results = results
	return nil
}

func (e *recordingExecutor) Submit(run core.Run) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[run.Job.ID] >= run.Job.MaxInstances {
		return core.ErrMaxInstancesReached
	}
	e.inFlight[run.Job.ID]++
	e.submitted = append(e.submitted, run)
	return nil
}

func (e *recordingExecutor) Shutdown(ctx context.Context, wait bool) error { return nil }

// complete reports every run time in the most recent batch submitted
// for id as finished, releasing its in-flight slot.
func (e *recordingExecutor) complete(id core.JobID) {
	e.mu.Lock()
	var batch core.Run
	for i := len(e.submitted) - 1; i >= 0; i-- {
		if e.submitted[i].Job.ID == id {
			batch = e.submitted[i]
			break
		}
	}
	e.inFlight[id] = 0
	e.mu.Unlock()

	for i, rt := range batch.RunTimes {
		e.results <- core.RunResult{Job: batch.Job, RunTime: rt, Done: i == len(batch.RunTimes)-1}
	}
}

func (e *recordingExecutor) submissionsFor(id core.JobID) []core.Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []core.Run
	for _, r := range e.submitted {
		if r.Job.ID == id {
			out = append(out, r)
		}
	}
	return out
}

func newTestScheduler(t *testing.T, clock *core.FrozenClock) (*core.Scheduler, *recordingExecutor) {
	t.Helper()
	exec := newRecordingExecutor()
	sched := core.NewScheduler(
		core.WithClock(clock),
		core.WithDefaultJobStore(func() core.JobStore { return memstore.New() }),
		core.WithDefaultExecutor(func() core.Executor { return exec }),
	)
	return sched, exec
}

// Scenario 1: one-shot immediate job fires exactly once and retires.
func TestOneShotImmediate(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFrozenClock(t0)
	sched, exec := newTestScheduler(t, clock)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Shutdown(ctx, true)

	handle, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "f"}, onceTrigger{at: t0})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(exec.submissionsFor(handle.JobID)) == 1
	}, time.Second, 5*time.Millisecond)

	exec.complete(handle.JobID)

	_, err = handle.Get(ctx)
	assert.ErrorIs(t, err, core.ErrJobNotFound, "one-shot job should retire after firing")
}

// Scenario 2: interval trigger with coalesce collapses a backlog of
// fire times into a single submission at the latest one.
func TestIntervalCoalesce(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFrozenClock(t0)
	sched, exec := newTestScheduler(t, clock)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Shutdown(ctx, true)

	handle, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "f"},
		intervalTrigger{start: t0.Add(time.Second), every: time.Second},
		core.WithCoalesce(true))
	require.NoError(t, err)

	clock.Set(t0.Add(5500 * time.Millisecond))
	// Force an immediate scan instead of waiting out mainLoop's timer.
	forceProcessDue(sched)

	require.Eventually(t, func() bool {
		return len(exec.submissionsFor(handle.JobID)) == 1
	}, time.Second, 5*time.Millisecond)

	batch := exec.submissionsFor(handle.JobID)[0]
	require.Len(t, batch.RunTimes, 1)
	assert.True(t, batch.RunTimes[0].Equal(t0.Add(5*time.Second)))

	exec.complete(handle.JobID)
	job, err := handle.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, job.NextRunTime)
	assert.True(t, job.NextRunTime.Equal(t0.Add(6*time.Second)))
}

// Scenario 3: misfire grace drops fire times older than now-grace;
// coalesce still collapses the survivors to one submission.
func TestMisfireDrop(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFrozenClock(t0)
	sched, exec := newTestScheduler(t, clock)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Shutdown(ctx, true)

	handle, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "f"},
		intervalTrigger{start: t0.Add(time.Second), every: time.Second},
		core.WithCoalesce(true), core.WithMisfireGraceTime(2*time.Second))
	require.NoError(t, err)

	missed := make(chan core.Event, 16)
	id := sched.Events().Subscribe(func(e core.Event) { missed <- e }, core.EventJobMissed)
	defer sched.Events().Unsubscribe(id)

	clock.Set(t0.Add(10 * time.Second))
	forceProcessDue(sched)

	require.Eventually(t, func() bool {
		return len(exec.submissionsFor(handle.JobID)) == 1
	}, time.Second, 5*time.Millisecond)

	batch := exec.submissionsFor(handle.JobID)[0]
	require.Len(t, batch.RunTimes, 1)
	assert.True(t, batch.RunTimes[0].Equal(t0.Add(10*time.Second)))

	// Fire times at 1..7s fall outside the 2s grace relative to 10s and
	// should have been reported missed (8s survives: 10-8=2 sits exactly
	// on the grace boundary, which the >= check keeps).
	close(missed)
	count := 0
	for range missed {
		count++
	}
	assert.True(t, count >= 7, "expected at least 7 missed fire times, got %d", count)
}

// Scenario 4: a slow job under max_instances=1 sees later submissions
// rejected with MaxInstancesReached, and its next_run_time is NOT
// advanced past the ones that were rejected.
func TestMaxInstancesBlocksAdvance(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFrozenClock(t0)
	sched, exec := newTestScheduler(t, clock)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Shutdown(ctx, true)

	handle, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "f"},
		intervalTrigger{start: t0, every: time.Second},
		core.WithMaxInstances(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(exec.submissionsFor(handle.JobID)) == 1
	}, time.Second, 5*time.Millisecond)

	job, err := handle.Get(ctx)
	require.NoError(t, err)
	assert.True(t, job.NextRunTime.Equal(t0.Add(time.Second)))

	// Advance past the next two fire times while the first run is
	// still "in flight" (never completed): both should be rejected for
	// capacity and NOT advance next_run_time.
	clock.Set(t0.Add(time.Second))
	forceProcessDue(sched)
	job, err = handle.Get(ctx)
	require.NoError(t, err)
	assert.True(t, job.NextRunTime.Equal(t0.Add(time.Second)), "next_run_time must not advance while at capacity")

	clock.Set(t0.Add(2 * time.Second))
	forceProcessDue(sched)
	job, err = handle.Get(ctx)
	require.NoError(t, err)
	assert.True(t, job.NextRunTime.Equal(t0.Add(time.Second)), "next_run_time must still not advance")

	assert.Len(t, exec.submissionsFor(handle.JobID), 1, "only the first batch should have been accepted")

	// The in-flight run finally completes; a scan long after (not just
	// immediately after) must still find the job due rather than having
	// lost it from the store's index on the earlier capacity rejections.
	exec.complete(handle.JobID)
	clock.Set(t0.Add(10 * time.Second))
	forceProcessDue(sched)

	require.Eventually(t, func() bool {
		return len(exec.submissionsFor(handle.JobID)) == 2
	}, time.Second, 5*time.Millisecond, "job must still be scanned as due after a capacity rejection")
}

// Scenario 5: jobs added before Start land in the pending list; after
// Start both can be looked up in the default store and the pending list
// is empty (the order they were inserted in is not checked here).
func TestPendingJobsFlushOnStart(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFrozenClock(t0)
	sched, _ := newTestScheduler(t, clock)
	ctx := context.Background()

	h1, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "a"}, onceTrigger{at: t0.Add(time.Hour)})
	require.NoError(t, err)
	h2, err := sched.AddJob(ctx, core.DefaultAlias, core.NamedCallable{Name: "b"}, onceTrigger{at: t0.Add(2 * time.Hour)})
	require.NoError(t, err)

	pendingTrue := true
	pending, err := sched.GetJobs(ctx, core.GetJobsFilter{Pending: &pendingTrue})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, sched.Start(ctx))
	defer sched.Shutdown(ctx, true)

	pending, err = sched.GetJobs(ctx, core.GetJobsFilter{Pending: &pendingTrue})
	require.NoError(t, err)
	assert.Empty(t, pending, "pending list must be empty once the scheduler is running")

	_, err = h1.Get(ctx)
	require.NoError(t, err)
	_, err = h2.Get(ctx)
	require.NoError(t, err)
}

// Scenario 6: a listener that always panics does not stop later
// listeners from observing the same event, nor does it crash the bus.
func TestListenerIsolation(t *testing.T) {
	bus := core.NewEventBus(func(recovered any) {})

	var secondSaw int
	bus.Subscribe(func(core.Event) { panic("boom") }, core.EventAll)
	bus.Subscribe(func(core.Event) { secondSaw++ }, core.EventAll)

	bus.Notify(core.Event{Code: core.EventJobAdded})
	bus.Notify(core.Event{Code: core.EventJobAdded})

	assert.Equal(t, 2, secondSaw)
}

// forceProcessDue re-exports the scheduler's wakeup primitive with a
// short settle delay so mainLoop has a chance to run processDue before
// the caller asserts on its effects (mainLoop runs on its own
// goroutine; there is no synchronous ProcessDue entry point exposed
// outside the package).
func forceProcessDue(sched *core.Scheduler) {
	sched.Wakeup()
	time.Sleep(20 * time.Millisecond)
}
