// Package memstore is the in-memory JobStore the scheduler core installs
// under DefaultAlias when the embedder registers no store of its own
// (spec.md §4.1 Start step 2). Grounded on spec.md §4.3's requirement
// that due_scan be "efficient, indexed on next_run_time": jobs are kept
// in a container/heap ordered by NextRunTime so DueScan and
// GetNextRunTime never do a full linear scan of retired jobs.
package memstore

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minisource/jobscheduler/internal/core"
)

// Store is a mutex-guarded, heap-indexed in-memory core.JobStore.
type Store struct {
	mu    sync.Mutex
	jobs  map[core.JobID]*core.Job
	order *jobHeap // only ever holds non-retired jobs
}

// New returns an empty Store.
func New() *Store {
	h := &jobHeap{}
	heap.Init(h)
	return &Store{
		jobs:  make(map[core.JobID]*core.Job),
		order: h,
	}
}

func (s *Store) AddJob(ctx context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %q", core.ErrAliasInUse, job.ID)
	}
	s.jobs[job.ID] = job
	if !job.Retired() {
		heap.Push(s.order, heapEntry{id: job.ID, next: *job.NextRunTime})
	}
	return nil
}

func (s *Store) LookupJob(ctx context.Context, id core.JobID) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *Store) ModifyJob(ctx context.Context, id core.JobID, changes core.JobChanges) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
	}

	if changes.ID != nil && *changes.ID != id {
		if _, collide := s.jobs[*changes.ID]; collide {
			return nil, fmt.Errorf("%w: job %q", core.ErrAliasInUse, *changes.ID)
		}
	}

	renamed, err := job.Apply(changes)
	if err != nil {
		return nil, err
	}
	if renamed != "" {
		delete(s.jobs, id)
		s.jobs[renamed] = job
	}
	s.reindex(job)
	return job, nil
}

func (s *Store) RemoveJob(ctx context.Context, id core.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
	}
	delete(s.jobs, id)
	s.removeFromHeap(id)
	return nil
}

func (s *Store) RemoveAllJobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.jobs)
	s.jobs = make(map[core.JobID]*core.Job)
	h := &jobHeap{}
	heap.Init(h)
	s.order = h
	return removed, nil
}

func (s *Store) GetAllJobs(ctx context.Context) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// DueScan returns every non-retired job whose NextRunTime is at or
// before now, ordered by NextRunTime ascending, popping them off the
// heap (fireJob's subsequent ModifyJob/RemoveJob call re-pushes or
// drops them as appropriate).
func (s *Store) DueScan(ctx context.Context, now time.Time) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*core.Job
	for s.order.Len() > 0 {
		top := (*s.order)[0]
		if top.next.After(now) {
			break
		}
		heap.Pop(s.order)
		job, exists := s.jobs[top.id]
		if !exists || job.Retired() {
			continue
		}
		// A stale heap entry (job's NextRunTime changed since it was
		// pushed) gets reinserted with its current time instead of
		// treated as due.
		if !job.NextRunTime.Equal(top.next) {
			heap.Push(s.order, heapEntry{id: job.ID, next: *job.NextRunTime})
			continue
		}
		due = append(due, job)
	}
	return due, nil
}

func (s *Store) GetNextRunTime(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.order.Len() > 0 {
		top := (*s.order)[0]
		job, exists := s.jobs[top.id]
		if !exists || job.Retired() {
			heap.Pop(s.order)
			continue
		}
		if !job.NextRunTime.Equal(top.next) {
			heap.Pop(s.order)
			heap.Push(s.order, heapEntry{id: job.ID, next: *job.NextRunTime})
			continue
		}
		return top.next, true, nil
	}
	return time.Time{}, false, nil
}

func (s *Store) Close() error { return nil }

// reindex drops and, if still live, re-pushes job's heap entry after a
// mutation that may have changed its NextRunTime.
func (s *Store) reindex(job *core.Job) {
	s.removeFromHeap(job.ID)
	if !job.Retired() {
		heap.Push(s.order, heapEntry{id: job.ID, next: *job.NextRunTime})
	}
}

func (s *Store) removeFromHeap(id core.JobID) {
	for i, e := range *s.order {
		if e.id == id {
			heap.Remove(s.order, i)
			return
		}
	}
}

type heapEntry struct {
	id   core.JobID
	next time.Time
}

type jobHeap []heapEntry

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].next.Before(h[j].next) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)         { *h = append(*h, x.(heapEntry)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

var _ core.JobStore = (*Store)(nil)
