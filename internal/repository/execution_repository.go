package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minisource/jobscheduler/internal/models"
)

// ExecutionRepository persists the per-run-time audit trail GORM keeps
// alongside the scheduler core's in-memory/SQL job state. Adapted from
// the teacher's ExecutionRepository: tenant scoping dropped, JobID
// switched from uuid.UUID to the core's string job id, and the
// pending/retrying/worker-id/request-response fields dropped since
// nothing in this module's executor model queues or retries at the
// persistence layer (internal/executor/httpexec owns retries in
// memory, spec.md §3 "misfire" and §4.4 govern retries, not a DB row).
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.JobExecution) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.JobExecution) error {
	return r.db.WithContext(ctx).Save(execution).Error
}

func (r *ExecutionRepository) FindByID(ctx context.Context, id string) (*models.JobExecution, error) {
	var execution models.JobExecution
	if err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

func (r *ExecutionRepository) Query(ctx context.Context, filter models.ExecutionFilter) (*models.ExecutionListResult, error) {
	var executions []models.JobExecution
	var total int64

	query := r.buildQuery(filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	err := query.Order("scheduled_at DESC").Offset(offset).Limit(pageSize).Find(&executions).Error
	if err != nil {
		return nil, err
	}

	return &models.ExecutionListResult{
		Executions: executions,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

func (r *ExecutionRepository) buildQuery(filter models.ExecutionFilter) *gorm.DB {
	query := r.db.Model(&models.JobExecution{})

	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.StartTime != nil {
		query = query.Where("scheduled_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("scheduled_at <= ?", filter.EndTime)
	}
	return query
}

func (r *ExecutionRepository) FindByJobID(ctx context.Context, jobID string, limit int) ([]models.JobExecution, error) {
	var executions []models.JobExecution
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("scheduled_at DESC").
		Limit(limit).
		Find(&executions).Error
	return executions, err
}

func (r *ExecutionRepository) FindRunning(ctx context.Context) ([]models.JobExecution, error) {
	var executions []models.JobExecution
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ExecutionStatusRunning).
		Find(&executions).Error
	return executions, err
}

// MarkAsCompleted records a successful run time's outcome.
func (r *ExecutionRepository) MarkAsCompleted(ctx context.Context, id string, statusCode int) error {
	now := time.Now()

	var execution models.JobExecution
	if err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		return err
	}

	var duration int64
	if execution.StartedAt != nil {
		duration = now.Sub(*execution.StartedAt).Milliseconds()
	}

	return r.db.WithContext(ctx).
		Model(&models.JobExecution{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.ExecutionStatusCompleted,
			"completed_at": now,
			"duration_ms":  duration,
			"status_code":  statusCode,
			"updated_at":   now,
		}).Error
}

// MarkAsFailed records a failed run time's outcome.
func (r *ExecutionRepository) MarkAsFailed(ctx context.Context, id string, errMsg string, statusCode *int) error {
	now := time.Now()

	var execution models.JobExecution
	if err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		return err
	}

	var duration int64
	if execution.StartedAt != nil {
		duration = now.Sub(*execution.StartedAt).Milliseconds()
	}

	updates := map[string]interface{}{
		"status":       models.ExecutionStatusFailed,
		"completed_at": now,
		"duration_ms":  duration,
		"error":        errMsg,
		"updated_at":   now,
	}
	if statusCode != nil {
		updates["status_code"] = *statusCode
	}

	return r.db.WithContext(ctx).
		Model(&models.JobExecution{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CleanupOld deletes execution rows older than before that reached a
// terminal status.
func (r *ExecutionRepository) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Where("status IN ?", []models.ExecutionStatus{
			models.ExecutionStatusCompleted,
			models.ExecutionStatusFailed,
		}).
		Delete(&models.JobExecution{})
	return result.RowsAffected, result.Error
}

// GetExecutionStats summarizes execution counts by status over
// [startTime, endTime].
func (r *ExecutionRepository) GetExecutionStats(ctx context.Context, startTime, endTime time.Time) (map[string]int64, error) {
	stats := make(map[string]int64)

	var total int64
	r.db.WithContext(ctx).Model(&models.JobExecution{}).
		Where("scheduled_at >= ? AND scheduled_at <= ?", startTime, endTime).
		Count(&total)
	stats["total"] = total

	for _, status := range []models.ExecutionStatus{
		models.ExecutionStatusCompleted,
		models.ExecutionStatusFailed,
	} {
		var count int64
		r.db.WithContext(ctx).Model(&models.JobExecution{}).
			Where("scheduled_at >= ? AND scheduled_at <= ?", startTime, endTime).
			Where("status = ?", status).
			Count(&count)
		stats[string(status)] = count
	}

	return stats, nil
}
