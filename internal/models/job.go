// Package models holds the REST-facing DTOs and the execution-history
// persistence rows. Job scheduling state itself lives in a
// core.JobStore (internal/jobstore/memstore or sqlstore); this package
// only describes what the HTTP API accepts/returns and what execution
// history GORM persists, adapted from the teacher's internal/models.
package models

import (
	"encoding/json"
	"time"
)

// JobType names which trigger kind a job's Schedule field should be
// parsed as.
type JobType string

const (
	JobTypeCron     JobType = "cron"     // Recurring cron job
	JobTypeOneTime  JobType = "one_time" // One-time scheduled job
	JobTypeInterval JobType = "interval" // Fixed interval job
)

// JobStatus is a REST-layer view of whether a job is firing. It has no
// equivalent inside the scheduler core, which models a job as either
// scheduled or retired; Paused is represented in core as a job whose
// NextRunTime is nil while it still exists in the store.
type JobStatus string

const (
	JobStatusActive   JobStatus = "active"
	JobStatusPaused   JobStatus = "paused"
	JobStatusDisabled JobStatus = "disabled"
)

// ExecutionStatus represents the status of a single job execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Job is the REST representation of a scheduled job: a flattening of
// core.Job plus the httpexec.Target fields, sufficient to round-trip
// through the HTTP API without exposing core's Go-native Trigger
// interface directly.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         JobType         `json:"type"`
	Status       JobStatus       `json:"status"`
	Schedule     string          `json:"schedule"`
	Timezone     string          `json:"timezone"`
	Endpoint     string          `json:"endpoint"`
	Method       string          `json:"method"`
	Headers      json.RawMessage `json:"headers,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	MaxRetries   int             `json:"max_retries"`
	RetryDelay   int             `json:"retry_delay"`
	Coalesce     bool            `json:"coalesce"`
	MaxRuns      *int            `json:"max_runs,omitempty"`
	MaxInstances int             `json:"max_instances"`
	NextRunAt    *time.Time      `json:"next_run_at,omitempty"`
	RunCount     int64           `json:"run_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// JobExecution records one completed run time, persisted via
// repository.ExecutionRepository for audit/history endpoints. Grounded
// on the teacher's JobExecution row, with TenantID dropped and JobID
// changed from uuid.UUID to string (core.JobID's underlying type).
type JobExecution struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobID       string          `json:"job_id" gorm:"type:varchar(64);not null;index:idx_executions_job"`
	Status      ExecutionStatus `json:"status" gorm:"type:varchar(20);not null;default:'running';index:idx_executions_status"`
	ScheduledAt time.Time       `json:"scheduled_at" gorm:"not null;index:idx_executions_scheduled"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMs  *int64          `json:"duration_ms,omitempty"`
	StatusCode  *int            `json:"status_code,omitempty"`
	Error       string          `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (JobExecution) TableName() string { return "job_executions" }

// JobHistory is a per-day rollup of a job's execution outcomes.
// Grounded on the teacher's JobHistory row, TenantID dropped.
type JobHistory struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobID         string    `json:"job_id" gorm:"type:varchar(64);not null;index:idx_history_job"`
	Date          time.Time `json:"date" gorm:"type:date;not null;index:idx_history_date"`
	TotalRuns     int64     `json:"total_runs" gorm:"default:0"`
	SuccessCount  int64     `json:"success_count" gorm:"default:0"`
	FailureCount  int64     `json:"failure_count" gorm:"default:0"`
	TotalDuration int64     `json:"total_duration_ms" gorm:"default:0"`
	MinDuration   int64     `json:"min_duration_ms"`
	MaxDuration   int64     `json:"max_duration_ms"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (JobHistory) TableName() string { return "job_history" }

// CreateJobRequest is the request body for POST /jobs.
type CreateJobRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=255"`
	Description  string          `json:"description,omitempty"`
	Type         JobType         `json:"type" validate:"required,oneof=cron one_time interval"`
	Schedule     string          `json:"schedule" validate:"required"`
	Timezone     string          `json:"timezone,omitempty"`
	Endpoint     string          `json:"endpoint" validate:"required,url"`
	Method       string          `json:"method,omitempty"`
	Headers      json.RawMessage `json:"headers,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	MaxRetries   int             `json:"max_retries,omitempty"`
	RetryDelay   int             `json:"retry_delay,omitempty"`
	Coalesce     bool            `json:"coalesce,omitempty"`
	MaxRuns      *int            `json:"max_runs,omitempty"`
	MaxInstances int             `json:"max_instances,omitempty"`
}

// UpdateJobRequest is the request body for PUT /jobs/:id. Every field
// is a pointer; nil means "leave unchanged" (mirrors core.JobChanges).
type UpdateJobRequest struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Schedule     *string          `json:"schedule,omitempty"`
	Endpoint     *string          `json:"endpoint,omitempty"`
	Method       *string          `json:"method,omitempty"`
	Headers      *json.RawMessage `json:"headers,omitempty"`
	Payload      *json.RawMessage `json:"payload,omitempty"`
	MaxRetries   *int             `json:"max_retries,omitempty"`
	RetryDelay   *int             `json:"retry_delay,omitempty"`
	Coalesce     *bool            `json:"coalesce,omitempty"`
	MaxRuns      **int            `json:"max_runs,omitempty"`
	MaxInstances *int             `json:"max_instances,omitempty"`
}

// JobFilter filters the job listing endpoint.
type JobFilter struct {
	Status   JobStatus `json:"status,omitempty"`
	Type     JobType   `json:"type,omitempty"`
	Name     string    `json:"name,omitempty"`
	Page     int       `json:"page,omitempty"`
	PageSize int       `json:"page_size,omitempty"`
}

// ExecutionFilter filters the execution listing endpoint.
type ExecutionFilter struct {
	JobID     string          `json:"job_id,omitempty"`
	Status    ExecutionStatus `json:"status,omitempty"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Page      int             `json:"page,omitempty"`
	PageSize  int             `json:"page_size,omitempty"`
}

// JobStats summarizes the jobs currently held by the scheduler.
type JobStats struct {
	TotalJobs    int64               `json:"total_jobs"`
	ActiveJobs   int64               `json:"active_jobs"`
	PausedJobs   int64               `json:"paused_jobs"`
	TotalRuns    int64               `json:"total_runs"`
	JobsByType   map[JobType]int64   `json:"jobs_by_type"`
	JobsByStatus map[JobStatus]int64 `json:"jobs_by_status"`
}

// JobListResult is a paginated job listing.
type JobListResult struct {
	Jobs       []Job `json:"jobs"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	HasMore    bool  `json:"has_more"`
}

// ExecutionListResult is a paginated execution listing.
type ExecutionListResult struct {
	Executions []JobExecution `json:"executions"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	HasMore    bool           `json:"has_more"`
}

// AggregatedHistoryStats summarizes JobHistory rows over a date range.
type AggregatedHistoryStats struct {
	TotalSuccess  int64   `json:"total_success"`
	TotalFailure  int64   `json:"total_failure"`
	TotalDuration int64   `json:"total_duration"`
	AvgDuration   float64 `json:"avg_duration"`
	MinDuration   int64   `json:"min_duration"`
	MaxDuration   int64   `json:"max_duration"`
	SuccessRate   float64 `json:"success_rate"`
}
