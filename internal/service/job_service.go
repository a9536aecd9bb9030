package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/executor/httpexec"
	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/trigger"
)

// JobService translates the REST-facing job DTOs into operations against
// the scheduler core: it holds no job state of its own, since the
// core.Scheduler (through its JobStore) is the system of record. Adapted
// from the teacher's JobService, which owned a JobRepository directly;
// here persistence and firing both live behind core.Scheduler.
type JobService struct {
	sched      *core.Scheduler
	storeAlias string
}

// NewJobService returns a JobService whose jobs live in the scheduler's
// storeAlias job store (core.DefaultAlias if empty).
func NewJobService(sched *core.Scheduler, storeAlias string) *JobService {
	if storeAlias == "" {
		storeAlias = core.DefaultAlias
	}
	return &JobService{sched: sched, storeAlias: storeAlias}
}

// Create schedules a new HTTP-callback job.
func (s *JobService) Create(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error) {
	trig, err := buildTrigger(req.Type, req.Schedule)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = "POST"
	}
	maxInstances := req.MaxInstances
	if maxInstances == 0 {
		maxInstances = 1
	}

	target := httpexec.Target{
		Method:  method,
		URL:     req.Endpoint,
		Payload: req.Payload,
		Headers: headersFromJSON(req.Headers),
	}

	opts := []core.AddJobOption{
		core.WithName(req.Name),
		core.WithCoalesce(req.Coalesce),
		core.WithMaxInstances(maxInstances),
	}
	if req.MaxRuns != nil {
		opts = append(opts, core.WithMaxRuns(*req.MaxRuns))
	}

	handle, err := s.sched.AddJob(ctx, s.storeAlias, target, trig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	job, err := handle.Get(ctx)
	if err != nil {
		return nil, err
	}
	return toDTO(job), nil
}

// GetByID retrieves a job by ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.sched.GetJob(ctx, s.storeAlias, core.JobID(id))
	if err != nil {
		return nil, err
	}
	return toDTO(job), nil
}

// List lists jobs with filtering and in-memory pagination; the scheduler
// core has no query planner of its own (spec.md §4.2 job stores expose
// DueScan and CRUD, not arbitrary filters).
func (s *JobService) List(ctx context.Context, filter models.JobFilter) (*models.JobListResult, error) {
	jobs, err := s.sched.GetJobs(ctx, core.GetJobsFilter{StoreAlias: s.storeAlias})
	if err != nil {
		return nil, err
	}

	dtos := make([]models.Job, 0, len(jobs))
	for _, job := range jobs {
		dto := toDTO(job)
		if filter.Status != "" && dto.Status != filter.Status {
			continue
		}
		if filter.Type != "" && dto.Type != filter.Type {
			continue
		}
		if filter.Name != "" && dto.Name != filter.Name {
			continue
		}
		dtos = append(dtos, *dto)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total := int64(len(dtos))
	start := (page - 1) * pageSize
	if start > len(dtos) {
		start = len(dtos)
	}
	end := start + pageSize
	if end > len(dtos) {
		end = len(dtos)
	}

	return &models.JobListResult{
		Jobs:       dtos[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

// Update applies a partial update to an existing job.
func (s *JobService) Update(ctx context.Context, id string, req *models.UpdateJobRequest) (*models.Job, error) {
	current, err := s.sched.GetJob(ctx, s.storeAlias, core.JobID(id))
	if err != nil {
		return nil, err
	}

	changes := core.JobChanges{}
	if req.Name != nil {
		changes.Name = req.Name
	}
	if req.Coalesce != nil {
		changes.Coalesce = req.Coalesce
	}
	if req.MaxRuns != nil {
		changes.MaxRuns = req.MaxRuns
	}
	if req.MaxInstances != nil {
		changes.MaxInstances = req.MaxInstances
	}

	target, isHTTP := current.CallableRef.(httpexec.Target)
	if !isHTTP {
		target = httpexec.Target{}
	}
	targetChanged := false
	if req.Endpoint != nil {
		target.URL = *req.Endpoint
		targetChanged = true
	}
	if req.Method != nil {
		target.Method = *req.Method
		targetChanged = true
	}
	if req.Headers != nil {
		target.Headers = headersFromJSON(*req.Headers)
		targetChanged = true
	}
	if req.Payload != nil {
		target.Payload = *req.Payload
		targetChanged = true
	}
	if targetChanged {
		changes.CallableRef = target
	}

	if req.Schedule != nil {
		jobType, _ := jobTypeOf(current.Trigger)
		trig, err := buildTrigger(jobType, *req.Schedule)
		if err != nil {
			return nil, err
		}
		changes.Trigger = trig
	}

	if changes.IsEmpty() {
		return toDTO(current), nil
	}

	job, err := s.sched.ModifyJob(ctx, s.storeAlias, core.JobID(id), changes)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return toDTO(job), nil
}

// Delete removes a job.
func (s *JobService) Delete(ctx context.Context, id string) error {
	return s.sched.RemoveJob(ctx, s.storeAlias, core.JobID(id))
}

// Trigger forces an immediate, out-of-band run of the job.
func (s *JobService) Trigger(ctx context.Context, id string) error {
	return s.sched.TriggerJob(ctx, s.storeAlias, core.JobID(id))
}

// Pause stops a job from firing without removing it.
func (s *JobService) Pause(ctx context.Context, id string) (*models.Job, error) {
	handle := s.sched.Handle(s.storeAlias, core.JobID(id))
	if err := handle.Pause(ctx); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Resume re-enables a paused job from now.
func (s *JobService) Resume(ctx context.Context, id string) (*models.Job, error) {
	handle := s.sched.Handle(s.storeAlias, core.JobID(id))
	if err := handle.Resume(ctx, time.Now()); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetStats summarizes the jobs currently held by the scheduler.
func (s *JobService) GetStats(ctx context.Context) (*models.JobStats, error) {
	jobs, err := s.sched.GetJobs(ctx, core.GetJobsFilter{StoreAlias: s.storeAlias})
	if err != nil {
		return nil, err
	}

	stats := &models.JobStats{
		JobsByType:   make(map[models.JobType]int64),
		JobsByStatus: make(map[models.JobStatus]int64),
	}
	for _, job := range jobs {
		dto := toDTO(job)
		stats.TotalJobs++
		stats.TotalRuns += dto.RunCount
		stats.JobsByType[dto.Type]++
		stats.JobsByStatus[dto.Status]++
		switch dto.Status {
		case models.JobStatusActive:
			stats.ActiveJobs++
		case models.JobStatusPaused:
			stats.PausedJobs++
		}
	}
	return stats, nil
}

// buildTrigger parses a schedule string per jobType into a core.Trigger,
// the Go-native equivalent of the source ecosystem's trigger
// constructors (spec.md §3 "trigger").
func buildTrigger(jobType models.JobType, schedule string) (core.Trigger, error) {
	switch jobType {
	case models.JobTypeCron:
		t, err := trigger.NewCron(schedule)
		if err != nil {
			return nil, err
		}
		return t, nil
	case models.JobTypeInterval:
		var seconds int
		if err := json.Unmarshal([]byte(schedule), &seconds); err != nil {
			if parsed, perr := strconv.Atoi(schedule); perr == nil {
				seconds = parsed
			} else {
				return nil, fmt.Errorf("invalid interval (expected seconds as integer): %w", err)
			}
		}
		if seconds < 1 {
			return nil, fmt.Errorf("interval must be at least 1 second")
		}
		return trigger.NewInterval(time.Now(), time.Duration(seconds)*time.Second), nil
	case models.JobTypeOneTime:
		at, err := time.Parse(time.RFC3339, schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid one-time schedule (expected RFC3339): %w", err)
		}
		return trigger.NewDate(at), nil
	default:
		return nil, fmt.Errorf("unknown job type: %s", jobType)
	}
}

// jobTypeOf recovers the REST JobType a core.Trigger corresponds to, for
// jobs that round-trip through this service's own buildTrigger.
func jobTypeOf(t core.Trigger) (models.JobType, string) {
	switch v := t.(type) {
	case trigger.Cron:
		return models.JobTypeCron, v.String()
	case trigger.Interval:
		return models.JobTypeInterval, strconv.Itoa(int(v.Every / time.Second))
	case trigger.Date:
		return models.JobTypeOneTime, v.At.Format(time.RFC3339)
	default:
		return "", ""
	}
}

func headersFromJSON(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var headers map[string]string
	_ = json.Unmarshal(raw, &headers)
	return headers
}

func headersToJSON(headers map[string]string) json.RawMessage {
	if len(headers) == 0 {
		return nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return nil
	}
	return raw
}

// toDTO flattens a core.Job (plus its httpexec.Target callable ref) into
// the REST Job representation. Description, Timezone, MaxRetries and
// RetryDelay have no home in core.Job and are not round-tripped.
func toDTO(job *core.Job) *models.Job {
	dto := &models.Job{
		ID:           string(job.ID),
		Name:         job.Name,
		Coalesce:     job.Coalesce,
		MaxRuns:      job.MaxRuns,
		MaxInstances: job.MaxInstances,
		NextRunAt:    job.NextRunTime,
		RunCount:     job.Runs,
	}

	if job.NextRunTime != nil {
		dto.Status = models.JobStatusActive
	} else {
		dto.Status = models.JobStatusPaused
	}

	dto.Type, dto.Schedule = jobTypeOf(job.Trigger)

	if target, ok := job.CallableRef.(httpexec.Target); ok {
		dto.Endpoint = target.URL
		dto.Method = target.Method
		dto.Payload = target.Payload
		dto.Headers = headersToJSON(target.Headers)
	}

	return dto
}
