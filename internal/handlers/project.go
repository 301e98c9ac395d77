package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/services"
	"github.com/devdex/devdex-backend/internal/types"
)

type ProjectHandler struct {
	log            *logger.Logger
	projectService services.ProjectService
}

func NewProjectHandler(log *logger.Logger, projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		log:            log.With("handler", "ProjectHandler"),
		projectService: projectService,
	}
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, projects)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	project, err := h.projectService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "project_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, project)
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	project, err := h.projectService.CreateEmpty(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Save(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	var project types.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	project.ID = id
	saved, err := h.projectService.Save(c.Request.Context(), &project)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "save_failed", err)
		return
	}
	RespondOK(c, saved)
}
