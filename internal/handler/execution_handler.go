package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/service"
)

// ExecutionHandler handles execution-related HTTP requests
type ExecutionHandler struct {
	executionService *service.ExecutionService
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(executionService *service.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{
		executionService: executionService,
	}
}

// Get retrieves an execution by ID
// @Summary Get an execution
// @Description Get an execution by ID
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} Response{data=models.JobExecution}
// @Failure 404 {object} Response
// @Router /api/v1/executions/{id} [get]
func (h *ExecutionHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	execution, err := h.executionService.GetByID(c.Context(), id)
	if err != nil {
		return NotFound(c, "Execution not found")
	}

	return Success(c, execution)
}

// List lists executions with filtering
// @Summary List executions
// @Description List executions with optional filtering
// @Tags executions
// @Produce json
// @Param job_id query string false "Filter by job ID"
// @Param status query string false "Filter by status"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.JobExecution}
// @Failure 500 {object} Response
// @Router /api/v1/executions [get]
func (h *ExecutionHandler) List(c *fiber.Ctx) error {
	filter := models.ExecutionFilter{
		JobID:    c.Query("job_id"),
		Status:   models.ExecutionStatus(c.Query("status")),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	if startTimeStr := c.Query("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := c.Query("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	result, err := h.executionService.List(c.Context(), filter)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return SuccessWithMeta(c, result.Executions, &Meta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	})
}

// ListByJob lists executions for a specific job
// @Summary List executions by job
// @Description List executions for a specific job
// @Tags executions
// @Produce json
// @Param job_id path string true "Job ID"
// @Param limit query int false "Limit" default(10)
// @Success 200 {object} Response{data=[]models.JobExecution}
// @Router /api/v1/jobs/{job_id}/executions [get]
func (h *ExecutionHandler) ListByJob(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	limit := c.QueryInt("limit", 10)

	executions, err := h.executionService.GetByJobID(c.Context(), jobID, limit)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, executions)
}

// GetStats retrieves execution statistics
// @Summary Get execution statistics
// @Description Get statistics about executions
// @Tags executions
// @Produce json
// @Param start_time query string false "Start time (RFC3339)"
// @Param end_time query string false "End time (RFC3339)"
// @Success 200 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/executions/stats [get]
func (h *ExecutionHandler) GetStats(c *fiber.Ctx) error {
	// Default to last 24 hours
	endTime := time.Now()
	startTime := endTime.Add(-24 * time.Hour)

	if startTimeStr := c.Query("start_time"); startTimeStr != "" {
		if t, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			startTime = t
		}
	}

	if endTimeStr := c.Query("end_time"); endTimeStr != "" {
		if t, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			endTime = t
		}
	}

	stats, err := h.executionService.GetStats(c.Context(), startTime, endTime)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, stats)
}
