package core

import (
	"context"
	"time"
)

// JobStore persists jobs and answers due-scan queries. Implementations
// live under internal/jobstore (memstore, sqlstore); the scheduler core
// never assumes anything about durability or backing storage.
type JobStore interface {
	// AddJob inserts job. A job whose ID is already stored is rejected
	// with an error (memstore wraps ErrAliasInUse; sqlstore returns the
	// database's primary-key error). The scheduler assigns an ID when the
	// caller gave none.
	AddJob(ctx context.Context, job *Job) error

	// LookupJob returns the job with the given id, or ErrJobNotFound.
	LookupJob(ctx context.Context, id JobID) (*Job, error)

	// ModifyJob applies changes to the job currently stored under id and
	// returns the stored result. If changes renames the job, the new id
	// must not collide with an existing one.
	ModifyJob(ctx context.Context, id JobID, changes JobChanges) (*Job, error)

	// RemoveJob deletes the job with the given id, or returns
	// ErrJobNotFound if it isn't present.
	RemoveJob(ctx context.Context, id JobID) error

	// RemoveAllJobs deletes every job in the store and returns how many
	// were removed.
	RemoveAllJobs(ctx context.Context) (removed int, err error)

	// GetAllJobs returns every job in the store, in unspecified order.
	GetAllJobs(ctx context.Context) ([]*Job, error)

	// DueScan returns every non-retired job whose NextRunTime is at or
	// before now, ordered by NextRunTime ascending.
	DueScan(ctx context.Context, now time.Time) ([]*Job, error)

	// GetNextRunTime returns the earliest NextRunTime across all
	// non-retired jobs in the store, used by the firing loop to compute
	// how long it can safely sleep. ok is false when the store holds no
	// pending jobs.
	GetNextRunTime(ctx context.Context) (t time.Time, ok bool, err error)

	// Close releases any resources (DB connections, etc).
	Close() error
}
