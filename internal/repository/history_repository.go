package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minisource/jobscheduler/internal/models"
)

// HistoryRepository maintains the per-day JobHistory rollups the
// history REST endpoints read from. Adapted from the teacher's
// HistoryRepository: tenant scoping dropped, JobID switched to string,
// and AvgDuration computed on read (GetAggregatedStats) instead of
// stored, since it's fully derived from TotalDuration and the run
// counts already persisted.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Upsert(ctx context.Context, history *models.JobHistory) error {
	return r.db.WithContext(ctx).
		Where("job_id = ? AND date = ?", history.JobID, history.Date).
		Assign(*history).
		FirstOrCreate(history).Error
}

// IncrementSuccess records one successful run time against jobID's
// rollup for date.
func (r *HistoryRepository) IncrementSuccess(ctx context.Context, jobID string, date time.Time, duration int64) error {
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var history models.JobHistory
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND date = ?", jobID, dateOnly).
		First(&history).Error

	if err == gorm.ErrRecordNotFound {
		history = models.JobHistory{
			ID:            uuid.New().String(),
			JobID:         jobID,
			Date:          dateOnly,
			TotalRuns:     1,
			SuccessCount:  1,
			TotalDuration: duration,
			MinDuration:   duration,
			MaxDuration:   duration,
		}
		return r.db.WithContext(ctx).Create(&history).Error
	}
	if err != nil {
		return err
	}

	minDuration := history.MinDuration
	if duration < minDuration || minDuration == 0 {
		minDuration = duration
	}
	maxDuration := history.MaxDuration
	if duration > maxDuration {
		maxDuration = duration
	}

	return r.db.WithContext(ctx).
		Model(&models.JobHistory{}).
		Where("id = ?", history.ID).
		Updates(map[string]interface{}{
			"total_runs":     gorm.Expr("total_runs + 1"),
			"success_count":  gorm.Expr("success_count + 1"),
			"total_duration": gorm.Expr("total_duration + ?", duration),
			"min_duration":   minDuration,
			"max_duration":   maxDuration,
		}).Error
}

// IncrementFailure records one failed run time against jobID's rollup
// for date.
func (r *HistoryRepository) IncrementFailure(ctx context.Context, jobID string, date time.Time) error {
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var history models.JobHistory
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND date = ?", jobID, dateOnly).
		First(&history).Error

	if err == gorm.ErrRecordNotFound {
		history = models.JobHistory{
			ID:           uuid.New().String(),
			JobID:        jobID,
			Date:         dateOnly,
			TotalRuns:    1,
			FailureCount: 1,
		}
		return r.db.WithContext(ctx).Create(&history).Error
	}
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&models.JobHistory{}).
		Where("id = ?", history.ID).
		Updates(map[string]interface{}{
			"total_runs":    gorm.Expr("total_runs + 1"),
			"failure_count": gorm.Expr("failure_count + 1"),
		}).Error
}

func (r *HistoryRepository) FindByJobID(ctx context.Context, jobID string, days int) ([]models.JobHistory, error) {
	var history []models.JobHistory
	startDate := time.Now().AddDate(0, 0, -days)

	err := r.db.WithContext(ctx).
		Where("job_id = ? AND date >= ?", jobID, startDate).
		Order("date DESC").
		Find(&history).Error
	return history, err
}

func (r *HistoryRepository) FindByDateRange(ctx context.Context, startDate, endDate time.Time) ([]models.JobHistory, error) {
	var history []models.JobHistory
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date DESC, job_id").
		Find(&history).Error
	return history, err
}

// GetAggregatedStats sums history rows over [startDate, endDate],
// optionally scoped to one job.
func (r *HistoryRepository) GetAggregatedStats(ctx context.Context, jobID string, startDate, endDate time.Time) (*models.AggregatedHistoryStats, error) {
	query := r.db.WithContext(ctx).Model(&models.JobHistory{}).
		Where("date >= ? AND date <= ?", startDate, endDate)
	if jobID != "" {
		query = query.Where("job_id = ?", jobID)
	}

	var result struct {
		TotalSuccess  int64
		TotalFailure  int64
		TotalDuration int64
		MinDuration   int64
		MaxDuration   int64
	}

	err := query.Select(`
		COALESCE(SUM(success_count), 0) as total_success,
		COALESCE(SUM(failure_count), 0) as total_failure,
		COALESCE(SUM(total_duration), 0) as total_duration,
		COALESCE(MIN(min_duration), 0) as min_duration,
		COALESCE(MAX(max_duration), 0) as max_duration
	`).Scan(&result).Error
	if err != nil {
		return nil, err
	}

	total := result.TotalSuccess + result.TotalFailure
	var avgDuration float64
	if total > 0 {
		avgDuration = float64(result.TotalDuration) / float64(total)
	}

	stats := &models.AggregatedHistoryStats{
		TotalSuccess:  result.TotalSuccess,
		TotalFailure:  result.TotalFailure,
		TotalDuration: result.TotalDuration,
		AvgDuration:   avgDuration,
		MinDuration:   result.MinDuration,
		MaxDuration:   result.MaxDuration,
	}
	if total > 0 {
		stats.SuccessRate = float64(result.TotalSuccess) / float64(total) * 100
	}
	return stats, nil
}

func (r *HistoryRepository) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("date < ?", before).
		Delete(&models.JobHistory{})
	return result.RowsAffected, result.Error
}
