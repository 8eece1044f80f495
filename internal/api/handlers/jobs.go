package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type JobHandler struct {
	tracker *services.JobTracker
	hub     *services.JobHub
	logger  *logrus.Logger
}

func NewJobHandler(tracker *services.JobTracker, hub *services.JobHub, logger *logrus.Logger) *JobHandler {
	return &JobHandler{tracker: tracker, hub: hub, logger: logger}
}

// ListJobs returns recent jobs, newest first.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			utils.SendValidationError(c, "Invalid limit", raw)
			return
		}
		limit = v
	}

	jobs, err := h.tracker.List(c.Request.Context(), limit)
	if err != nil {
		sendServiceError(c, h.logger, err, "Jobs not found")
		return
	}
	utils.SendSuccessWithMeta(c, jobs, &utils.Meta{Total: int64(len(jobs))})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.tracker.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, h.logger, err, "Job not found")
		return
	}
	utils.SendSuccess(c, job)
}

// StreamJobs upgrades to a websocket pushing job updates. ?job_id= limits
// the stream to one job.
func (h *JobHandler) StreamJobs(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request, c.Query("job_id")); err != nil {
		h.logger.WithError(err).Warn("Job websocket upgrade failed")
	}
}
