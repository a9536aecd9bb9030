package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/service"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobService *service.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// Create creates a new job
// @Summary Create a job
// @Description Create a new scheduled job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body models.CreateJobRequest true "Job creation request"
// @Success 201 {object} Response{data=models.Job}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req models.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	job, err := h.jobService.Create(c.Context(), &req)
	if err != nil {
		return BadRequest(c, err.Error())
	}

	return Created(c, job)
}

// Get retrieves a job by ID
// @Summary Get a job
// @Description Get a job by ID
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} Response{data=models.Job}
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobService.GetByID(c.Context(), id)
	if err != nil {
		return NotFound(c, "Job not found")
	}

	return Success(c, job)
}

// List lists jobs with filtering
// @Summary List jobs
// @Description List jobs with optional filtering
// @Tags jobs
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Param name query string false "Filter by name"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.Job}
// @Failure 500 {object} Response
// @Router /api/v1/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	filter := models.JobFilter{
		Status:   models.JobStatus(c.Query("status")),
		Type:     models.JobType(c.Query("type")),
		Name:     c.Query("name"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	result, err := h.jobService.List(c.Context(), filter)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return SuccessWithMeta(c, result.Jobs, &Meta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	})
}

// Update updates a job
// @Summary Update a job
// @Description Update an existing job
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param request body models.UpdateJobRequest true "Job update request"
// @Success 200 {object} Response{data=models.Job}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id} [put]
func (h *JobHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")

	var req models.UpdateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	job, err := h.jobService.Update(c.Context(), id, &req)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			return NotFound(c, "Job not found")
		}
		return InternalError(c, err.Error())
	}

	return Success(c, job)
}

// Delete deletes a job
// @Summary Delete a job
// @Description Delete a job
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 204 "No Content"
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id} [delete]
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.jobService.Delete(c.Context(), id); err != nil {
		return NotFound(c, "Job not found")
	}

	return NoContent(c)
}

// Trigger manually triggers a job
// @Summary Trigger a job
// @Description Manually trigger an out-of-band job run
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id}/trigger [post]
func (h *JobHandler) Trigger(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.jobService.Trigger(c.Context(), id); err != nil {
		return NotFound(c, "Job not found")
	}

	return Success(c, fiber.Map{"triggered": true})
}

// Pause pauses a job
// @Summary Pause a job
// @Description Pause a job from executing
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 200 {object} Response{data=models.Job}
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id}/pause [post]
func (h *JobHandler) Pause(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobService.Pause(c.Context(), id)
	if err != nil {
		return NotFound(c, "Job not found")
	}

	return Success(c, job)
}

// Resume resumes a paused job
// @Summary Resume a job
// @Description Resume a paused job
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 200 {object} Response{data=models.Job}
// @Failure 404 {object} Response
// @Router /api/v1/jobs/{id}/resume [post]
func (h *JobHandler) Resume(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobService.Resume(c.Context(), id)
	if err != nil {
		return NotFound(c, "Job not found")
	}

	return Success(c, job)
}

// GetStats retrieves job statistics
// @Summary Get job statistics
// @Description Get statistics about jobs
// @Tags jobs
// @Produce json
// @Success 200 {object} Response{data=models.JobStats}
// @Failure 500 {object} Response
// @Router /api/v1/jobs/stats [get]
func (h *JobHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.jobService.GetStats(c.Context())
	if err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, stats)
}
