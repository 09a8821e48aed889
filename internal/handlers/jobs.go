package handlers

import (
	"net/http"

	"fieldjob-backend/internal/jobsync"
	"fieldjob-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type JobsHandler struct {
	list *jobsync.JobList
}

func NewJobsHandler(list *jobsync.JobList) *JobsHandler {
	return &JobsHandler{list: list}
}

// List godoc
// @Summary     List jobs
// @Description Returns the current job list snapshot, earliest appointment first.
// @Description Cancelled jobs are excluded. The error field carries the last sync failure.
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.JobListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /jobs [get]
func (h *JobsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotResponse(h.list.Snapshot()))
}

// Refresh godoc
// @Summary     Reload the job list
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.JobListResponse
// @Failure     502 {object} models.JobListResponse
// @Router      /jobs/refresh [post]
func (h *JobsHandler) Refresh(c *gin.Context) {
	err := h.list.Refresh(c.Request.Context())
	resp := snapshotResponse(h.list.Snapshot())
	if err != nil {
		resp.Error = err.Error()
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func snapshotResponse(s jobsync.Snapshot) models.JobListResponse {
	resp := models.JobListResponse{Jobs: s.Jobs, Loading: s.Loading}
	if resp.Jobs == nil {
		resp.Jobs = []models.JobView{}
	}
	if s.Err != nil {
		resp.Error = s.Err.Error()
	}
	return resp
}
