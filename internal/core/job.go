package core

import (
	"context"
	"fmt"
	"time"
)

// JobID uniquely identifies a Job within one JobStore.
type JobID string

// Trigger yields a sequence of future fire times. Implementations are
// pure functions of their own configuration and the argument (see
// internal/trigger for cron/interval/date implementations).
type Trigger interface {
	// NextFireTime returns the first fire time strictly after `after`.
	// ok is false once the trigger is exhausted (spec.md glossary:
	// "fire time").
	NextFireTime(after time.Time) (t time.Time, ok bool)
}

// CallableRef is a Go-native stand-in for the source ecosystem's textual
// "module_path:object_path" reference (spec.md §9 Design Notes): either a
// callable the caller already holds, or a name resolved through a
// CallableRegistry the embedder populates before the scheduler starts.
type CallableRef interface {
	fmt.Stringer
}

// JobFunc is the shape every resolved callable must have.
type JobFunc func(ctx context.Context, args []any, kwargs map[string]any) error

// DirectCallable wraps a callable the caller already holds in memory.
type DirectCallable struct {
	Label string
	Func  JobFunc
}

func (d DirectCallable) String() string {
	if d.Label != "" {
		return d.Label
	}
	return "<direct callable>"
}

// NamedCallable is resolved at fire time through a CallableRegistry,
// mirroring the source ecosystem's textual reference.
type NamedCallable struct {
	Name string
}

func (n NamedCallable) String() string { return n.Name }

// CallableRegistry resolves NamedCallable references to JobFuncs. The
// embedder populates one before starting the scheduler; executors use it
// to turn a Job's CallableRef into something invokable.
type CallableRegistry struct {
	funcs map[string]JobFunc
}

// NewCallableRegistry returns an empty registry.
func NewCallableRegistry() *CallableRegistry {
	return &CallableRegistry{funcs: make(map[string]JobFunc)}
}

// Register associates name with fn. Re-registering the same name
// overwrites the previous mapping.
func (r *CallableRegistry) Register(name string, fn JobFunc) {
	r.funcs[name] = fn
}

// Resolve returns the callable a CallableRef refers to.
func (r *CallableRegistry) Resolve(ref CallableRef) (JobFunc, error) {
	switch c := ref.(type) {
	case DirectCallable:
		return c.Func, nil
	case NamedCallable:
		fn, ok := r.funcs[c.Name]
		if !ok {
			return nil, fmt.Errorf("callable registry: no callable named %q", c.Name)
		}
		return fn, nil
	default:
		return nil, fmt.Errorf("callable registry: unsupported callable ref %T", ref)
	}
}

// Job is the identity and behavior of one scheduled unit (spec.md §3).
type Job struct {
	ID            JobID
	Name          string
	CallableRef   CallableRef
	Args          []any
	Kwargs        map[string]any
	Trigger       Trigger
	ExecutorAlias string

	// MisfireGraceTime is nil for unlimited tolerance. A run whose
	// intended time is older than now-grace is dropped as a misfire.
	MisfireGraceTime *time.Duration
	Coalesce         bool
	// MaxRuns is nil for unlimited total fires.
	MaxRuns      *int
	MaxInstances int

	// NextRunTime is nil when the job is retired; it MUST NOT be
	// returned by DueScan in that state.
	NextRunTime *time.Time
	Runs        int64
}

func (j *Job) String() string {
	if j.Name != "" {
		return fmt.Sprintf("%s (id=%s)", j.Name, j.ID)
	}
	return string(j.ID)
}

// Retired reports whether the job has no further fire times.
func (j *Job) Retired() bool {
	return j.NextRunTime == nil
}

// PendingRunTimes returns every trigger fire time in [NextRunTime, now]
// still within MisfireGraceTime of now, coalescing to the single latest
// one when Coalesce is set (spec.md §4.1 step 3b).
func (j *Job) PendingRunTimes(now time.Time) []time.Time {
	runTimes, _ := j.dueRunTimes(now)
	return runTimes
}

// MissedRunTimes returns the fire times in [NextRunTime, now] that fell
// outside MisfireGraceTime and were dropped.
func (j *Job) MissedRunTimes(now time.Time) []time.Time {
	_, missed := j.dueRunTimes(now)
	return missed
}

func (j *Job) dueRunTimes(now time.Time) (runTimes, missed []time.Time) {
	if j.NextRunTime == nil {
		return nil, nil
	}

	next := *j.NextRunTime
	for !next.After(now) {
		if j.withinGrace(next, now) {
			runTimes = append(runTimes, next)
		} else {
			missed = append(missed, next)
		}
		t, ok := j.Trigger.NextFireTime(next)
		if !ok {
			break
		}
		next = t
	}

	if j.Coalesce && len(runTimes) > 1 {
		runTimes = runTimes[len(runTimes)-1:]
	}
	return runTimes, missed
}

func (j *Job) withinGrace(runTime, now time.Time) bool {
	if j.MisfireGraceTime == nil {
		return true
	}
	return !runTime.Before(now.Add(-*j.MisfireGraceTime))
}

// JobChanges is a partial update applied by ModifyJob. Every field is
// nil-able (a pointer, slice, map or interface); nil means "leave
// unchanged". An empty JobChanges is a no-op
// (spec.md §8 round-trip law).
type JobChanges struct {
	ID               *JobID
	Name             *string
	CallableRef      CallableRef
	Args             []any
	Kwargs           map[string]any
	Trigger          Trigger
	ExecutorAlias    *string
	MisfireGraceTime **time.Duration
	Coalesce         *bool
	MaxRuns          **int
	MaxInstances     *int
	NextRunTime      **time.Time
	Runs             *int64
}

// IsEmpty reports whether the change set modifies nothing.
func (c JobChanges) IsEmpty() bool {
	return c.ID == nil && c.Name == nil && c.CallableRef == nil && c.Args == nil &&
		c.Kwargs == nil && c.Trigger == nil && c.ExecutorAlias == nil &&
		c.MisfireGraceTime == nil && c.Coalesce == nil && c.MaxRuns == nil &&
		c.MaxInstances == nil && c.NextRunTime == nil && c.Runs == nil
}

// Apply validates changes and then applies them to j in place, returning
// the new id (if changed) separately so callers can detect renames. A
// change set that fails validation leaves j untouched; checking a rename
// for collisions is left to the caller (spec.md §9 Open Question:
// modify_job with a changed id looks up by the OLD id, then renames last).
func (j *Job) Apply(changes JobChanges) (renamed JobID, err error) {
	if changes.MaxInstances != nil && *changes.MaxInstances < 1 {
		return "", fmt.Errorf("%w: max_instances must be >= 1", ErrInvalidChange)
	}
	if changes.MisfireGraceTime != nil && *changes.MisfireGraceTime != nil && **changes.MisfireGraceTime < 0 {
		return "", fmt.Errorf("%w: misfire_grace_time must be >= 0", ErrInvalidChange)
	}

	if changes.Name != nil {
		j.Name = *changes.Name
	}
	if changes.CallableRef != nil {
		j.CallableRef = changes.CallableRef
	}
	if changes.Args != nil {
		j.Args = changes.Args
	}
	if changes.Kwargs != nil {
		j.Kwargs = changes.Kwargs
	}
	if changes.Trigger != nil {
		j.Trigger = changes.Trigger
	}
	if changes.ExecutorAlias != nil {
		j.ExecutorAlias = *changes.ExecutorAlias
	}
	if changes.MisfireGraceTime != nil {
		j.MisfireGraceTime = *changes.MisfireGraceTime
	}
	if changes.Coalesce != nil {
		j.Coalesce = *changes.Coalesce
	}
	if changes.MaxRuns != nil {
		j.MaxRuns = *changes.MaxRuns
	}
	if changes.MaxInstances != nil {
		j.MaxInstances = *changes.MaxInstances
	}
	if changes.NextRunTime != nil {
		j.NextRunTime = *changes.NextRunTime
	}
	if changes.Runs != nil {
		j.Runs = *changes.Runs
	}
	if changes.ID != nil && *changes.ID != j.ID {
		renamed = *changes.ID
		j.ID = renamed
	}
	return renamed, nil
}
