package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

type upsertJobRequest struct {
	ID     string `json:"id" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
	Status string `json:"status" binding:"required"`
	Detail string `json:"detail"`
}

func (s *Server) upsertJob(c *gin.Context) {
	var req upsertJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	job, err := s.engine.Jobs.Upsert(req.ID, req.Kind, req.Status, req.Detail)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	CreatedResponse(c, "job upserted", job)
}

func (s *Server) getJob(c *gin.Context) {
	id := c.Param("id")

	job, err := s.engine.Jobs.Get(id)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "job retrieved", job)
}

func (s *Server) listJobs(c *gin.Context) {
	status := c.Query("status")

	jobs, err := s.engine.Jobs.List(status)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "jobs listed", jobs)
}

type updateJobStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Error  string `json:"error"`
}

func (s *Server) updateJobStatus(c *gin.Context) {
	id := c.Param("id")

	var req updateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	if err := s.engine.Jobs.UpdateStatus(id, req.Status, req.Error); err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "job status updated", nil)
}

func (s *Server) clearCompletedJobs(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			BadRequestError(c, "invalid older_than duration: "+err.Error())
			return
		}
		olderThan = parsed
	}

	count, err := s.engine.Jobs.ClearCompleted(olderThan)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "completed jobs cleared", gin.H{"cleared": count})
}
