package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veloplan/sync-service/internal/dto"
	"github.com/veloplan/sync-service/internal/repository"
	"github.com/veloplan/sync-service/internal/service"
)

const defaultRunListLimit = 20

// JobHandler handles the admin job surface: registered jobs, manual
// triggers and the run ledger.
type JobHandler struct {
	scheduler *service.Scheduler
	jobs      repository.JobRepository
}

// NewJobHandler creates a new job handler
func NewJobHandler(scheduler *service.Scheduler, jobs repository.JobRepository) *JobHandler {
	return &JobHandler{
		scheduler: scheduler,
		jobs:      jobs,
	}
}

// ListJobs returns every registered job with its schedule
// @Summary List scheduled jobs
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Success 200 {array} service.JobStatus
// @Router /admin/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// TriggerJob runs the named job immediately
// @Summary Trigger a job run
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} domain.JobRun
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /admin/jobs/{name}/run [post]
func (h *JobHandler) TriggerJob(c *gin.Context) {
	name := c.Param("name")

	run, err := h.scheduler.RunNow(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrJobBusy):
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal error",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, run)
}

// StartScheduler arms every registered job's cron trigger
// @Summary Arm all job triggers
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /admin/scheduler/start [post]
func (h *JobHandler) StartScheduler(c *gin.Context) {
	h.scheduler.StartAll()
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "All job triggers armed"})
}

// StopScheduler disarms every registered job's cron trigger
// @Summary Disarm all job triggers
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /admin/scheduler/stop [post]
func (h *JobHandler) StopScheduler(c *gin.Context) {
	h.scheduler.StopAll()
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "All job triggers disarmed"})
}

// StartJob arms the named job's cron trigger
// @Summary Arm a job trigger
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/jobs/{name}/start [post]
func (h *JobHandler) StartJob(c *gin.Context) {
	h.toggleJob(c, h.scheduler.StartJob, "Job trigger armed")
}

// StopJob disarms the named job's cron trigger
// @Summary Disarm a job trigger
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/jobs/{name}/stop [post]
func (h *JobHandler) StopJob(c *gin.Context) {
	h.toggleJob(c, h.scheduler.StopJob, "Job trigger disarmed")
}

func (h *JobHandler) toggleJob(c *gin.Context, toggle func(string) error, message string) {
	name := c.Param("name")

	if err := toggle(name); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: message})
}

// ListRuns returns the most recent job runs
// @Summary List job runs
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum runs to return"
// @Success 200 {array} domain.JobRun
// @Router /admin/jobs/runs [get]
func (h *JobHandler) ListRuns(c *gin.Context) {
	limit := defaultRunListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.jobs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, runs)
}

// GetRunDetails returns one run with its per-user attempts
// @Summary Get job run details
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/jobs/runs/{id} [get]
func (h *JobHandler) GetRunDetails(c *gin.Context) {
	id := c.Param("id")

	run, err := h.jobs.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	logs, err := h.jobs.ListLogsByRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":  run,
		"logs": logs,
	})
}
