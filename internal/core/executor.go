package core

import (
	"context"
	"time"
)

// Run describes one batch firing of a job: every run time that cleared
// misfire/coalesce filtering on a single processDue pass, submitted
// together (spec.md §4.1 step c: "Submit (job, run_times) to the
// executor" is one call, not one call per run time). The batch counts as
// a single in-flight instance against the job's MaxInstances, matching
// the source ecosystem's executor (one thread-pool submission runs every
// run_time in the batch sequentially).
type Run struct {
	Job      *Job
	RunTimes []time.Time
}

// RunResult is what an Executor reports back after one run time within a
// batch completes. A coalesced batch of N run times yields N RunResults;
// the last one must set Done so the scheduler releases the batch's
// MaxInstances slot exactly once.
type RunResult struct {
	Job         *Job
	RunTime     time.Time
	ReturnValue any
	Err         error
	Done        bool
}

// Executor runs jobs, respecting each job's MaxInstances. Implementations
// live under internal/executor (httpexec adapts the teacher's HTTP
// callback executor; a direct in-process executor is also plausible for
// embedders that register DirectCallables).
type Executor interface {
	// Start prepares the executor to accept work. results receives one
	// RunResult per completed or failed run time; the executor must not
	// block indefinitely if the channel isn't drained promptly.
	Start(ctx context.Context, results chan<- RunResult) error

	// Submit hands off a run batch for execution. It returns
	// ErrMaxInstancesReached immediately, without queuing, if the job
	// already has MaxInstances batches in flight.
	Submit(run Run) error

	// Shutdown stops accepting new work. If wait is true it blocks until
	// in-flight runs finish.
	Shutdown(ctx context.Context, wait bool) error
}
