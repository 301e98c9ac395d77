package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/services"
	"github.com/devdex/devdex-backend/internal/sse"
)

type JobHandler struct {
	log         *logger.Logger
	jobService  services.JobService
	fileService services.FileService
	hub         *sse.Hub
}

func NewJobHandler(log *logger.Logger, jobService services.JobService, fileService services.FileService, hub *sse.Hub) *JobHandler {
	return &JobHandler{
		log:         log.With("handler", "JobHandler"),
		jobService:  jobService,
		fileService: fileService,
		hub:         hub,
	}
}

// POST /api/projects/:id/analyze
// Body: {"file_ids": [...]} — when omitted, all of the project's files are
// analyzed. Submitting while a queued job exists merges into it.
func (h *JobHandler) Analyze(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	var body struct {
		FileIDs []string `json:"file_ids"`
	}
	// An absent body means "analyze everything"; a malformed one is an error.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	fileIDs := make([]uuid.UUID, 0, len(body.FileIDs))
	for _, raw := range body.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_file_id", fmt.Errorf("invalid file id %q", raw))
			return
		}
		fileIDs = append(fileIDs, id)
	}
	if len(fileIDs) == 0 {
		files, err := h.fileService.ListByProject(c.Request.Context(), projectID)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "list_files_failed", err)
			return
		}
		for _, f := range files {
			fileIDs = append(fileIDs, f.ID)
		}
	}
	if len(fileIDs) == 0 {
		RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("project has no files to analyze"))
		return
	}

	job, err := h.jobService.Submit(c.Request.Context(), projectID, fileIDs)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		return
	}
	h.jobService.Dispatch(job.ID)
	c.JSON(http.StatusAccepted, job)
}

// GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobService.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "job_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, job)
}

// POST /api/jobs/:id/retry
func (h *JobHandler) Retry(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobService.Retry(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "job_not_found", err)
			return
		}
		RespondError(c, http.StatusConflict, "retry_failed", err)
		return
	}
	RespondOK(c, job)
}

// GET /api/jobs/:id/events — SSE stream of the job's state transitions.
func (h *JobHandler) Events(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	events, cancel := h.hub.Subscribe(jobID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			c.Writer.Flush()
		}
	}
}
