package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/services"
)

type OracleHandler struct {
	log           *logger.Logger
	oracleService services.OracleService
	fileService   services.FileService
}

func NewOracleHandler(log *logger.Logger, oracleService services.OracleService, fileService services.FileService) *OracleHandler {
	return &OracleHandler{
		log:           log.With("handler", "OracleHandler"),
		oracleService: oracleService,
		fileService:   fileService,
	}
}

// POST /api/projects/:id/oracle — open a chat session seeded with the
// project's current files. The context is frozen at creation time.
func (h *OracleHandler) CreateSession(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	files, err := h.fileService.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_files_failed", err)
		return
	}
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("project has no files to chat about"))
		return
	}
	fileIDs := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
	}
	contents, err := h.fileService.ResolveContents(c.Request.Context(), fileIDs)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "resolve_files_failed", err)
		return
	}
	session := h.oracleService.CreateSession(contents)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"file_count": len(contents),
	})
}

// POST /api/oracle/:sessionId/messages
func (h *OracleHandler) SendMessage(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if body.Message == "" {
		RespondError(c, http.StatusBadRequest, "empty_message", fmt.Errorf("message must not be empty"))
		return
	}
	session, ok := h.oracleService.GetSession(sessionID)
	if !ok {
		RespondError(c, http.StatusNotFound, "session_not_found", fmt.Errorf("oracle session %s not found", sessionID))
		return
	}
	reply, err := session.Send(c.Request.Context(), body.Message)
	if err != nil {
		if errors.Is(err, services.ErrContextTooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, "context_too_large", err)
			return
		}
		var chatErr *services.ChatError
		if errors.As(err, &chatErr) {
			RespondError(c, http.StatusBadGateway, "chat_failed", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "chat_failed", err)
		return
	}
	RespondOK(c, gin.H{"reply": reply})
}

// GET /api/oracle/:sessionId/messages
func (h *OracleHandler) History(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	session, ok := h.oracleService.GetSession(sessionID)
	if !ok {
		RespondError(c, http.StatusNotFound, "session_not_found", fmt.Errorf("oracle session %s not found", sessionID))
		return
	}
	RespondOK(c, gin.H{"messages": session.History()})
}

// DELETE /api/oracle/:sessionId
func (h *OracleHandler) EndSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	h.oracleService.EndSession(sessionID)
	c.Status(http.StatusNoContent)
}
