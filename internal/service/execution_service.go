package service

import (
	"context"
	"time"

	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/repository"
)

// ExecutionService handles execution-history business logic. Adapted
// from the teacher's ExecutionService: tenant scoping dropped, job and
// execution ids are plain strings (core.JobID's underlying type), and
// Cancel/GetPending are dropped since nothing in this module queues
// executions for later dispatch (internal/executor/httpexec runs a
// batch the moment core.Scheduler submits it; there is no pending-row
// state to cancel).
type ExecutionService struct {
	executionRepo *repository.ExecutionRepository
}

func NewExecutionService(executionRepo *repository.ExecutionRepository) *ExecutionService {
	return &ExecutionService{executionRepo: executionRepo}
}

func (s *ExecutionService) GetByID(ctx context.Context, id string) (*models.JobExecution, error) {
	return s.executionRepo.FindByID(ctx, id)
}

func (s *ExecutionService) List(ctx context.Context, filter models.ExecutionFilter) (*models.ExecutionListResult, error) {
	return s.executionRepo.Query(ctx, filter)
}

func (s *ExecutionService) GetByJobID(ctx context.Context, jobID string, limit int) ([]models.JobExecution, error) {
	return s.executionRepo.FindByJobID(ctx, jobID, limit)
}

func (s *ExecutionService) GetRunning(ctx context.Context) ([]models.JobExecution, error) {
	return s.executionRepo.FindRunning(ctx)
}

func (s *ExecutionService) GetStats(ctx context.Context, startTime, endTime time.Time) (map[string]int64, error) {
	return s.executionRepo.GetExecutionStats(ctx, startTime, endTime)
}
