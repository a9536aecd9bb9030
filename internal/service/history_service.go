package service

import (
	"context"
	"time"

	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/repository"
)

// HistoryService handles per-day execution rollup business logic.
// Adapted from the teacher's HistoryService: tenant scoping dropped and
// job ids are plain strings.
type HistoryService struct {
	historyRepo *repository.HistoryRepository
}

func NewHistoryService(historyRepo *repository.HistoryRepository) *HistoryService {
	return &HistoryService{historyRepo: historyRepo}
}

func (s *HistoryService) GetByJobID(ctx context.Context, jobID string, days int) ([]models.JobHistory, error) {
	return s.historyRepo.FindByJobID(ctx, jobID, days)
}

func (s *HistoryService) GetByDateRange(ctx context.Context, startDate, endDate time.Time) ([]models.JobHistory, error) {
	return s.historyRepo.FindByDateRange(ctx, startDate, endDate)
}

// GetAggregated retrieves aggregated history stats, optionally scoped to
// one job (empty jobID matches every job).
func (s *HistoryService) GetAggregated(ctx context.Context, jobID string, startDate, endDate time.Time) (*models.AggregatedHistoryStats, error) {
	return s.historyRepo.GetAggregatedStats(ctx, jobID, startDate, endDate)
}

func (s *HistoryService) RecordSuccess(ctx context.Context, jobID string, date time.Time, duration int64) error {
	return s.historyRepo.IncrementSuccess(ctx, jobID, date, duration)
}

func (s *HistoryService) RecordFailure(ctx context.Context, jobID string, date time.Time) error {
	return s.historyRepo.IncrementFailure(ctx, jobID, date)
}

func (s *HistoryService) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.historyRepo.CleanupOld(ctx, before)
}
