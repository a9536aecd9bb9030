package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/minisource/jobscheduler/internal/core"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *gorm.DB
	scheduler *core.Scheduler
}

// NewHealthHandler creates a new health handler. db is optional: pass
// nil when the scheduler is running with a store that isn't backed by
// Postgres (e.g. memstore), and the database check is skipped.
func NewHealthHandler(db *gorm.DB, sched *core.Scheduler) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: sched,
	}
}

// Health returns the service health status
// @Summary Health check
// @Description Check service health
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"scheduler": h.scheduler.IsRunning(),
	}

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			healthData["status"] = "unhealthy"
			healthData["database"] = "disconnected"
			return ServiceUnavailable(c, "Database connection error")
		}
		healthData["database"] = "connected"
	}

	return Success(c, healthData)
}

// Ready returns the service readiness status
// @Summary Readiness check
// @Description Check if service is ready to accept traffic
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /ready [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if !h.scheduler.IsRunning() {
		return ServiceUnavailable(c, "Scheduler is not running")
	}

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return ServiceUnavailable(c, "Database connection error")
		}
	}

	return Success(c, fiber.Map{"status": "ready"})
}

// Live returns the liveness status
// @Summary Liveness check
// @Description Check if service is alive
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Router /live [get]
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return Success(c, fiber.Map{"status": "alive"})
}
