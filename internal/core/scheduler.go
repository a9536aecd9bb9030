package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAlias is the job store / executor alias used when the
	// caller doesn't specify one, matching the source ecosystem's
	// "default" convention.
	DefaultAlias = "default"
)

type schedulerState int

const (
	stateStopped schedulerState = iota
	stateRunning
	statePaused
)

// AddJobOption configures a Job at AddJob time. Using functional options
// here, rather than a long positional parameter list, sidesteps the
// upstream project's own documented param-order inconsistency between
// add_job and scheduled_job (see SPEC_FULL.md §9).
type AddJobOption func(*Job)

func WithID(id JobID) AddJobOption { return func(j *Job) { j.ID = id } }
func WithName(name string) AddJobOption { return func(j *Job) { j.Name = name } }
func WithArgs(args ...any) AddJobOption { return func(j *Job) { j.Args = args } }
func WithKwargs(kwargs map[string]any) AddJobOption {
	return func(j *Job) { j.Kwargs = kwargs }
}
func WithExecutor(alias string) AddJobOption {
	return func(j *Job) { j.ExecutorAlias = alias }
}
func WithMisfireGraceTime(d time.Duration) AddJobOption {
	return func(j *Job) { j.MisfireGraceTime = &d }
}
func WithCoalesce(coalesce bool) AddJobOption {
	return func(j *Job) { j.Coalesce = coalesce }
}
func WithMaxRuns(n int) AddJobOption {
	return func(j *Job) { j.MaxRuns = &n }
}
func WithMaxInstances(n int) AddJobOption {
	return func(j *Job) { j.MaxInstances = n }
}

// IDGenerator mints a JobID when AddJob is called without WithID.
type IDGenerator func() JobID

// Scheduler is the in-process job scheduler core. It owns zero runtime
// state of its own beyond bookkeeping: all durable job state lives in the
// registered JobStores, and all work execution is delegated to
// Executors. Grounded on the source ecosystem's BaseScheduler: three
// independent locks guard executors, job stores, and listeners so a slow
// listener can never block a job store lookup.
type Scheduler struct {
	clock       Clock
	genID       IDGenerator
	events      *EventBus
	callables   *CallableRegistry
	logger      *zap.Logger

	executorsMu sync.Mutex
	executors   map[string]Executor

	storesMu sync.Mutex
	stores   map[string]JobStore

	stateMu sync.Mutex
	state   schedulerState

	instancesMu sync.Mutex
	instances   map[JobID]int // in-flight run counts, enforced before Submit

	// pending holds jobs added before Start; storesMu also guards this
	// slice (spec.md §5: "the stores lock covers ... the pending-jobs
	// list ... and all mutation APIs that touch jobs").
	pending []*pendingJob

	wakeup chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	onPanic func(recovered any)

	defaultStore    func() JobStore
	defaultExecutor func() Executor
}

// pendingJob is a Job parked before Start() flushes it to its store
// (spec.md §3 Lifecycle: "a pending list [(job, desired_store_alias)]").
type pendingJob struct {
	job        *Job
	storeAlias string
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }
func WithIDGenerator(g IDGenerator) Option { return func(s *Scheduler) { s.genID = g } }
func WithCallableRegistry(r *CallableRegistry) Option {
	return func(s *Scheduler) { s.callables = r }
}
func WithPanicHandler(f func(recovered any)) Option {
	return func(s *Scheduler) { s.onPanic = f }
}

// WithLogger attaches a *zap.Logger the firing loop uses to report
// capacity backpressure, submission failures, and store errors (spec.md
// §7). Callers that don't supply one get zap.NewNop(), matching the
// source ecosystem's own "logging is opt-in but never nil" stance.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithDefaultJobStore supplies the factory Start uses to install a job
// store under DefaultAlias when the caller registered none (spec.md
// §4.1 Start step 2). The core stays decoupled from concrete store
// packages (internal/jobstore); the embedder wires one in, typically an
// in-memory store.
func WithDefaultJobStore(factory func() JobStore) Option {
	return func(s *Scheduler) { s.defaultStore = factory }
}

// WithDefaultExecutor supplies the factory Start uses to install an
// executor under DefaultAlias when the caller registered none (spec.md
// §4.1 Start step 1).
func WithDefaultExecutor(factory func() Executor) Option {
	return func(s *Scheduler) { s.defaultExecutor = factory }
}

// NewScheduler constructs a Scheduler with no job stores or executors
// registered. Start installs a DefaultAlias store and executor from the
// WithDefaultJobStore/WithDefaultExecutor factories when none is
// registered under that alias; without those options, callers must
// AddJobStore and AddExecutor (aliased DefaultAlias by convention)
// before Start.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		executors: make(map[string]Executor),
		stores:    make(map[string]JobStore),
		instances: make(map[JobID]int),
		wakeup:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewSystemClock(nil)
	}
	if s.callables == nil {
		s.callables = NewCallableRegistry()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.events = NewEventBus(s.onPanic)
	return s
}

// Callables returns the registry embedders use to register NamedCallables.
func (s *Scheduler) Callables() *CallableRegistry { return s.callables }

// Events returns the scheduler's event bus for Subscribe/Unsubscribe.
func (s *Scheduler) Events() *EventBus { return s.events }

// Handle returns a JobHandle for a job the caller already knows the id
// of (e.g. from a URL path parameter), without a round trip through the
// job store first.
func (s *Scheduler) Handle(storeAlias string, id JobID) JobHandle {
	return JobHandle{scheduler: s, StoreAlias: storeAlias, JobID: id}
}

// AddExecutor registers an executor under alias. Re-registering an alias
// already in use returns ErrAliasInUse.
func (s *Scheduler) AddExecutor(alias string, executor Executor) error {
	s.executorsMu.Lock()
	defer s.executorsMu.Unlock()
	if _, exists := s.executors[alias]; exists {
		return ErrAliasInUse
	}
	s.executors[alias] = executor
	return nil
}

// RemoveExecutor unregisters and shuts down the executor under alias.
func (s *Scheduler) RemoveExecutor(ctx context.Context, alias string) error {
	s.executorsMu.Lock()
	executor, exists := s.executors[alias]
	if !exists {
		s.executorsMu.Unlock()
		return ErrNoSuchAlias
	}
	delete(s.executors, alias)
	s.executorsMu.Unlock()
	return executor.Shutdown(ctx, false)
}

// AddJobStore registers a job store under alias.
func (s *Scheduler) AddJobStore(alias string, store JobStore) error {
	s.storesMu.Lock()
	if _, exists := s.stores[alias]; exists {
		s.storesMu.Unlock()
		return ErrAliasInUse
	}
	s.stores[alias] = store
	s.storesMu.Unlock()

	s.events.Notify(Event{Code: EventJobstoreAdded, StoreAlias: alias})
	s.wake()
	return nil
}

// RemoveJobStore unregisters and closes the job store under alias.
func (s *Scheduler) RemoveJobStore(alias string) error {
	s.storesMu.Lock()
	store, exists := s.stores[alias]
	if !exists {
		s.storesMu.Unlock()
		return ErrNoSuchAlias
	}
	delete(s.stores, alias)
	s.storesMu.Unlock()

	s.events.Notify(Event{Code: EventJobstoreRemoved, StoreAlias: alias})
	return store.Close()
}

func (s *Scheduler) store(alias string) (JobStore, error) {
	s.storesMu.Lock()
	defer s.storesMu.Unlock()
	store, exists := s.stores[alias]
	if !exists {
		return nil, fmt.Errorf("%w: job store %q", ErrNoSuchAlias, alias)
	}
	return store, nil
}

func (s *Scheduler) executor(alias string) (Executor, error) {
	s.executorsMu.Lock()
	defer s.executorsMu.Unlock()
	executor, exists := s.executors[alias]
	if !exists {
		return nil, fmt.Errorf("%w: executor %q", ErrNoSuchAlias, alias)
	}
	return executor, nil
}

// AddJob schedules a new job against trigger and returns a handle to it.
// storeAlias selects which registered JobStore owns the job; pass
// DefaultAlias for the common single-store case. If the scheduler is not
// yet running, the job is parked in the pending list and flushed to its
// store on Start (spec.md §3 Lifecycle, §4.1 add_job).
func (s *Scheduler) AddJob(ctx context.Context, storeAlias string, ref CallableRef, trigger Trigger, opts ...AddJobOption) (JobHandle, error) {
	job := &Job{
		CallableRef:   ref,
		Trigger:       trigger,
		ExecutorAlias: DefaultAlias,
		Coalesce:      true,
		MaxInstances:  1,
	}
	for _, opt := range opts {
		opt(job)
	}
	if job.ID == "" {
		job.ID = s.newID()
	}

	if !s.IsRunning() {
		s.storesMu.Lock()
		s.pending = append(s.pending, &pendingJob{job: job, storeAlias: storeAlias})
		s.storesMu.Unlock()
		return JobHandle{scheduler: s, StoreAlias: storeAlias, JobID: job.ID}, nil
	}

	return s.realAddJob(ctx, storeAlias, job)
}

func (s *Scheduler) newID() JobID {
	if s.genID != nil {
		return s.genID()
	}
	return JobID(fmt.Sprintf("job-%d", s.clock.Now().UnixNano()))
}

// realAddJob computes the job's initial NextRunTime, inserts it into its
// store, and emits JOB_ADDED (spec.md §4.1 "real_add_job").
func (s *Scheduler) realAddJob(ctx context.Context, storeAlias string, job *Job) (JobHandle, error) {
	store, err := s.store(storeAlias)
	if err != nil {
		return JobHandle{}, err
	}

	now := s.clock.Now()
	next, ok := job.Trigger.NextFireTime(now.Add(-time.Nanosecond))
	if ok {
		job.NextRunTime = &next
	}
	// A trigger exhausted before its first fire time is stored already
	// retired rather than rejected (SPEC_FULL.md §9): callers that want
	// to reject that case can check handle state themselves.

	if err := store.AddJob(ctx, job); err != nil {
		return JobHandle{}, err
	}

	s.events.Notify(Event{Code: EventJobAdded, StoreAlias: storeAlias, JobID: job.ID})
	s.wake()
	return JobHandle{scheduler: s, StoreAlias: storeAlias, JobID: job.ID}, nil
}

// findPendingLocked returns the pending entry for id, if any. Caller must hold
// storesMu.
func (s *Scheduler) findPendingLocked(id JobID) (*pendingJob, int) {
	for i, p := range s.pending {
		if p.job.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// ModifyJob applies changes to the job at id, whether it is still pending
// or already stored (spec.md §4.1 modify_job).
func (s *Scheduler) ModifyJob(ctx context.Context, storeAlias string, id JobID, changes JobChanges) (*Job, error) {
	if changes.IsEmpty() {
		s.storesMu.Lock()
		p, _ := s.findPendingLocked(id)
		s.storesMu.Unlock()
		if p != nil {
			return p.job, nil
		}
		return s.GetJob(ctx, storeAlias, id)
	}

	s.storesMu.Lock()
	p, _ := s.findPendingLocked(id)
	if p != nil {
		_, err := p.job.Apply(changes)
		job := p.job
		s.storesMu.Unlock()
		return job, err
	}
	s.storesMu.Unlock()

	store, err := s.store(storeAlias)
	if err != nil {
		return nil, err
	}
	job, err := store.ModifyJob(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	s.events.Notify(Event{Code: EventJobModified, StoreAlias: storeAlias, JobID: job.ID})
	s.wake()
	return job, nil
}

// RemoveJob deletes the job at id, whether pending or already stored
// (spec.md §4.1 remove_job).
func (s *Scheduler) RemoveJob(ctx context.Context, storeAlias string, id JobID) error {
	s.storesMu.Lock()
	if _, idx := s.findPendingLocked(id); idx >= 0 {
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		s.storesMu.Unlock()
		return nil
	}
	s.storesMu.Unlock()

	store, err := s.store(storeAlias)
	if err != nil {
		return err
	}
	if err := store.RemoveJob(ctx, id); err != nil {
		return err
	}
	s.events.Notify(Event{Code: EventJobRemoved, StoreAlias: storeAlias, JobID: id})
	return nil
}

// RemoveAllJobs deletes every job in the given store, emitting a single
// EventJobstoreCleared event carrying the removed count rather than one
// EventJobRemoved per job (SPEC_FULL.md §9 Open Question resolution).
func (s *Scheduler) RemoveAllJobs(ctx context.Context, storeAlias string) (int, error) {
	store, err := s.store(storeAlias)
	if err != nil {
		return 0, err
	}
	removed, err := store.RemoveAllJobs(ctx)
	if err != nil {
		return 0, err
	}
	s.events.Notify(Event{Code: EventJobstoreCleared, StoreAlias: storeAlias, Removed: removed})
	return removed, nil
}

// GetJob returns the job at id, checking the pending list before the
// named store.
func (s *Scheduler) GetJob(ctx context.Context, storeAlias string, id JobID) (*Job, error) {
	s.storesMu.Lock()
	p, _ := s.findPendingLocked(id)
	s.storesMu.Unlock()
	if p != nil {
		return p.job, nil
	}

	store, err := s.store(storeAlias)
	if err != nil {
		return nil, err
	}
	return store.LookupJob(ctx, id)
}

// GetJobsFilter narrows GetJobs. A zero value matches everything.
type GetJobsFilter struct {
	// StoreAlias restricts results to one store's scheduled jobs; empty
	// matches every store. Has no effect on pending jobs, which have no
	// store yet.
	StoreAlias string
	// Pending, when non-nil, restricts results to pending jobs (true) or
	// only scheduled jobs (false). Nil returns both (spec.md §4.1
	// get_jobs(store_alias=None, pending=None)).
	Pending *bool
}

// GetJobs returns the pending and/or scheduled jobs matching filter.
func (s *Scheduler) GetJobs(ctx context.Context, filter GetJobsFilter) ([]*Job, error) {
	var all []*Job

	if filter.Pending == nil || *filter.Pending {
		s.storesMu.Lock()
		for _, p := range s.pending {
			all = append(all, p.job)
		}
		s.storesMu.Unlock()
	}

	if filter.Pending != nil && *filter.Pending {
		return all, nil
	}

	s.storesMu.Lock()
	aliases := make([]string, 0, len(s.stores))
	stores := make([]JobStore, 0, len(s.stores))
	for alias, store := range s.stores {
		if filter.StoreAlias != "" && alias != filter.StoreAlias {
			continue
		}
		aliases = append(aliases, alias)
		stores = append(stores, store)
	}
	s.storesMu.Unlock()

	for i, store := range stores {
		jobs, err := store.GetAllJobs(ctx)
		if err != nil {
			return nil, fmt.Errorf("job store %q: %w", aliases[i], err)
		}
		all = append(all, jobs...)
	}
	return all, nil
}

// TriggerJob forces an immediate, out-of-band run of the job at id,
// bypassing its trigger and MisfireGraceTime but still subject to
// MaxInstances.
func (s *Scheduler) TriggerJob(ctx context.Context, storeAlias string, id JobID) error {
	job, err := s.GetJob(ctx, storeAlias, id)
	if err != nil {
		return err
	}
	return s.submitRun(Run{Job: job, RunTimes: []time.Time{s.clock.Now()}})
}

// Start begins the background firing loop. Returns ErrAlreadyRunning if
// already started.
func (s *Scheduler) Start(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state == stateRunning {
		s.stateMu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = stateRunning
	s.done = make(chan struct{})
	s.stateMu.Unlock()

	if err := s.installDefaults(); err != nil {
		s.stateMu.Lock()
		s.state = stateStopped
		s.stateMu.Unlock()
		return err
	}

	s.executorsMu.Lock()
	results := make(chan RunResult, 64)
	for _, executor := range s.executors {
		if err := executor.Start(ctx, results); err != nil {
			s.executorsMu.Unlock()
			return fmt.Errorf("starting executor: %w", err)
		}
	}
	s.executorsMu.Unlock()

	if err := s.flushPending(ctx); err != nil {
		return fmt.Errorf("flushing pending jobs: %w", err)
	}

	s.wg.Add(2)
	go s.mainLoop(ctx)
	go s.resultLoop(ctx, results)

	s.events.Notify(Event{Code: EventSchedulerStarted})
	return nil
}

// installDefaults registers a default executor/job store under
// DefaultAlias when the caller hasn't (spec.md §4.1 Start steps 1-2).
// The job store is added quietly — no wakeup, matching add_jobstore's
// quiet=True path, since nothing can be due on a store nobody has added
// jobs to yet.
func (s *Scheduler) installDefaults() error {
	s.executorsMu.Lock()
	_, hasExecutor := s.executors[DefaultAlias]
	s.executorsMu.Unlock()
	if !hasExecutor && s.defaultExecutor != nil {
		if err := s.AddExecutor(DefaultAlias, s.defaultExecutor()); err != nil {
			return err
		}
	}

	s.storesMu.Lock()
	_, hasStore := s.stores[DefaultAlias]
	if !hasStore && s.defaultStore != nil {
		s.stores[DefaultAlias] = s.defaultStore()
	}
	s.storesMu.Unlock()
	return nil
}

// flushPending drains the pending list in insertion order, computing
// each job's initial NextRunTime and inserting it into its named store
// (spec.md §4.1 Start step 4).
func (s *Scheduler) flushPending(ctx context.Context) error {
	s.storesMu.Lock()
	pending := s.pending
	s.pending = nil
	s.storesMu.Unlock()

	for _, p := range pending {
		if _, err := s.realAddJob(ctx, p.storeAlias, p.job); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the firing loop and, if wait is true, blocks until all
// in-flight goroutines exit.
func (s *Scheduler) Shutdown(ctx context.Context, wait bool) error {
	s.stateMu.Lock()
	if s.state == stateStopped {
		s.stateMu.Unlock()
		return ErrNotRunning
	}
	s.state = stateStopped
	close(s.done)
	s.stateMu.Unlock()

	s.executorsMu.Lock()
	for _, executor := range s.executors {
		_ = executor.Shutdown(ctx, wait)
	}
	s.executorsMu.Unlock()

	if wait {
		s.wg.Wait()
	}
	s.events.Notify(Event{Code: EventSchedulerShutdown})
	return nil
}

// IsRunning reports whether the firing loop is active.
func (s *Scheduler) IsRunning() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state == stateRunning
}

func (s *Scheduler) wake() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// Wakeup preempts mainLoop's sleep and forces an immediate processDue
// pass, idempotent and non-blocking (spec.md §5's "_wakeup" primitive).
// Mutation methods call this internally; it is exported so an embedder
// driving its own loop (spec.md §2: "the embedding loop is pluggable")
// can signal the scheduler from outside, e.g. after an external event
// that might have changed what's due.
func (s *Scheduler) Wakeup() { s.wake() }

// mainLoop is the firing loop: process due jobs, then sleep until the
// next known fire time or until woken by a mutation, whichever comes
// first (the source ecosystem's _main_loop/_process_jobs/_wakeup).
func (s *Scheduler) mainLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		wait := s.processDue(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wakeup:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// processDue scans every job store for due jobs, submits each pending
// run to its executor, and returns how long the caller may safely sleep
// before the next known fire time.
func (s *Scheduler) processDue(ctx context.Context) time.Duration {
	const idleWait = time.Minute

	s.storesMu.Lock()
	aliases := make([]string, 0, len(s.stores))
	stores := make([]JobStore, 0, len(s.stores))
	for alias, store := range s.stores {
		aliases = append(aliases, alias)
		stores = append(stores, store)
	}
	s.storesMu.Unlock()

	now := s.clock.Now()
	var soonest *time.Time

	for i, store := range stores {
		due, err := store.DueScan(ctx, now)
		if err != nil {
			s.logger.Error("due scan failed, store skipped this pass",
				zap.String("store", aliases[i]), zap.Error(err))
			continue
		}
		for _, job := range due {
			s.fireJob(ctx, aliases[i], store, job, now)
		}

		next, ok, err := store.GetNextRunTime(ctx)
		if err != nil {
			s.logger.Error("next run time lookup failed",
				zap.String("store", aliases[i]), zap.Error(err))
		}
		if err == nil && ok {
			if soonest == nil || next.Before(*soonest) {
				soonest = &next
			}
		}
	}

	if soonest == nil {
		return idleWait
	}
	wait := soonest.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	if wait > idleWait {
		wait = idleWait
	}
	return wait
}

// fireJob submits every pending run time for job as one batch (after
// coalesce/misfire filtering). The job's NextRunTime/Runs only advance
// past `now` if that batch is accepted by its executor: a capacity or
// submission failure leaves the job untouched so the next scan retries
// it (spec.md §4.1 step 3c-d, scenario 4: max-instances submissions do
// NOT advance next_run_time).
func (s *Scheduler) fireJob(ctx context.Context, storeAlias string, store JobStore, job *Job, now time.Time) {
	runTimes := job.PendingRunTimes(now)
	for _, missed := range job.MissedRunTimes(now) {
		s.events.Notify(Event{Code: EventJobMissed, StoreAlias: storeAlias, JobID: job.ID, RunTime: missed})
	}

	if len(runTimes) > 0 {
		err := s.submitRun(Run{Job: job, RunTimes: runTimes})
		if err != nil {
			lastRunTime := runTimes[len(runTimes)-1]
			if err == ErrMaxInstancesReached {
				s.logger.Warn("job at max instances, run skipped",
					zap.String("job_id", string(job.ID)), zap.Time("run_time", lastRunTime))
			} else {
				s.logger.Error("job submission failed, run skipped",
					zap.String("job_id", string(job.ID)), zap.Time("run_time", lastRunTime), zap.Error(err))
			}
			s.events.Notify(Event{Code: EventJobError, StoreAlias: storeAlias, JobID: job.ID, RunTime: lastRunTime, Err: err})

			// DueScan popped job off the store's due-time index before
			// calling us; since we aren't advancing NextRunTime here, the
			// store must be told to reinsert it (an empty JobChanges is a
			// no-op to the job itself) or it would never be scanned as due
			// again (spec.md §4.1 step 3c: "the next scan will try again").
			if _, err := store.ModifyJob(ctx, job.ID, JobChanges{}); err != nil {
				s.logger.Error("failed to reinstate job after submission failure",
					zap.String("job_id", string(job.ID)), zap.Error(err))
			}
			return
		}
	}

	next, hasNext := job.Trigger.NextFireTime(now)
	runs := job.Runs + int64(len(runTimes))
	exhausted := !hasNext || (job.MaxRuns != nil && runs >= int64(*job.MaxRuns))

	if exhausted {
		if err := store.RemoveJob(ctx, job.ID); err != nil {
			s.logger.Error("failed to remove exhausted job",
				zap.String("job_id", string(job.ID)), zap.Error(err))
			return
		}
		s.events.Notify(Event{Code: EventJobRemoved, StoreAlias: storeAlias, JobID: job.ID})
		return
	}

	if _, err := store.ModifyJob(ctx, job.ID, JobChanges{
		NextRunTime: ptrToPtr(&next),
		Runs:        &runs,
	}); err != nil {
		s.logger.Error("failed to advance job's next run time",
			zap.String("job_id", string(job.ID)), zap.Error(err))
		return
	}
}

func ptrToPtr(t *time.Time) **time.Time { return &t }

// submitRun reserves one in-flight instance slot for the job and hands
// the batch to its executor. The slot is released by resultLoop once
// every run time in the batch has reported back, or immediately here if
// the executor rejects the submission outright.
func (s *Scheduler) submitRun(run Run) error {
	s.instancesMu.Lock()
	inFlight := s.instances[run.Job.ID]
	if inFlight >= run.Job.MaxInstances {
		s.instancesMu.Unlock()
		return ErrMaxInstancesReached
	}
	s.instances[run.Job.ID] = inFlight + 1
	s.instancesMu.Unlock()

	executor, err := s.executor(run.Job.ExecutorAlias)
	if err != nil {
		s.releaseInstance(run.Job.ID)
		return err
	}
	if err := executor.Submit(run); err != nil {
		s.releaseInstance(run.Job.ID)
		return err
	}
	return nil
}

func (s *Scheduler) releaseInstance(id JobID) {
	s.instancesMu.Lock()
	defer s.instancesMu.Unlock()
	if s.instances[id] > 0 {
		s.instances[id]--
	}
}

// resultLoop drains executor results and turns them into events. Each
// RunResult is one run time within a batch; the in-flight instance slot
// reserved by submitRun is only released once the executor signals the
// LAST run time in that batch (Executor implementations set Done on that
// final RunResult).
func (s *Scheduler) resultLoop(ctx context.Context, results <-chan RunResult) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			if result.Done {
				s.releaseInstance(result.Job.ID)
			}
			if result.Err != nil {
				s.events.Notify(Event{
					Code:    EventJobError,
					JobID:   result.Job.ID,
					RunTime: result.RunTime,
					Err:     result.Err,
				})
			} else {
				s.events.Notify(Event{
					Code:        EventJobExecuted,
					JobID:       result.Job.ID,
					RunTime:     result.RunTime,
					ReturnValue: result.ReturnValue,
				})
			}
		}
	}
}
