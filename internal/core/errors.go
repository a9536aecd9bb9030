package core

import "errors"

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("scheduler: already running")
	ErrNotRunning     = errors.New("scheduler: not running")
)

// Registry errors.
var (
	ErrAliasInUse  = errors.New("scheduler: alias already in use")
	ErrNoSuchAlias = errors.New("scheduler: no such alias")
	ErrJobNotFound = errors.New("scheduler: job not found")
)

// ErrMaxInstancesReached is returned by an Executor.Submit when a job
// already has max_instances runs in flight. The firing loop treats it as
// a capacity signal, not a failure: the job's state is left untouched so
// the next scan retries it.
var ErrMaxInstancesReached = errors.New("scheduler: max instances reached")

// ErrInvalidChange is returned by modify_job when the change set refers to
// an unknown field or would leave the job in an inconsistent state.
var ErrInvalidChange = errors.New("scheduler: invalid job change")
