package core

import (
	"context"
	"time"
)

// JobHandle is a lightweight value referring back to one job in one
// store. It caches nothing: every method re-reads through the owning
// Scheduler, so a handle never goes stale the way a cached Job snapshot
// would (spec.md §9 ownership model).
type JobHandle struct {
	scheduler  *Scheduler
	StoreAlias string
	JobID      JobID
}

// Get re-reads the current state of the job this handle refers to.
func (h JobHandle) Get(ctx context.Context) (*Job, error) {
	return h.scheduler.GetJob(ctx, h.StoreAlias, h.JobID)
}

// Modify applies changes to the job this handle refers to. If changes
// renames the job, the handle itself is NOT updated in place; use the
// returned Job's ID to build a fresh handle.
func (h JobHandle) Modify(ctx context.Context, changes JobChanges) (*Job, error) {
	return h.scheduler.ModifyJob(ctx, h.StoreAlias, h.JobID, changes)
}

// Remove deletes the job this handle refers to.
func (h JobHandle) Remove(ctx context.Context) error {
	return h.scheduler.RemoveJob(ctx, h.StoreAlias, h.JobID)
}

// Trigger forces an immediate run of the job this handle refers to.
func (h JobHandle) Trigger(ctx context.Context) error {
	return h.scheduler.TriggerJob(ctx, h.StoreAlias, h.JobID)
}

// Pause clears the job's NextRunTime so it no longer fires until Resume
// recomputes it, without removing it from its store.
func (h JobHandle) Pause(ctx context.Context) error {
	var nilTime *time.Time
	_, err := h.Modify(ctx, JobChanges{NextRunTime: ptrToPtr(nilTime)})
	return err
}

// Resume recomputes the job's NextRunTime from its trigger, using now as
// the lower bound, and re-enables firing.
func (h JobHandle) Resume(ctx context.Context, now time.Time) error {
	job, err := h.Get(ctx)
	if err != nil {
		return err
	}
	next, ok := job.Trigger.NextFireTime(now.Add(-time.Nanosecond))
	if !ok {
		return nil
	}
	_, err = h.Modify(ctx, JobChanges{NextRunTime: ptrToPtr(&next)})
	if err == nil {
		h.scheduler.wake()
	}
	return err
}
