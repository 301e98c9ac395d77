package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/services"
)

type FileHandler struct {
	log         *logger.Logger
	fileService services.FileService
}

func NewFileHandler(log *logger.Logger, fileService services.FileService) *FileHandler {
	return &FileHandler{
		log:         log.With("handler", "FileHandler"),
		fileService: fileService,
	}
}

type fileOutcomeResponse struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// POST /api/projects/:id/files (multipart, field "files")
// Outcomes are reported per file; one bad file never rolls back its siblings.
func (h *FileHandler) Upload(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	fileHeaders := c.Request.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		RespondError(c, http.StatusBadRequest, "no_files", nil)
		return
	}

	uploads := make([]services.Upload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_file", err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_file", err)
			return
		}
		uploads = append(uploads, services.Upload{Name: fh.Filename, Data: data})
	}

	outcomes, err := h.fileService.Ingest(c.Request.Context(), projectID, uploads)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "ingest_failed", err)
		return
	}

	resp := make([]fileOutcomeResponse, 0, len(outcomes))
	for i, outcome := range outcomes {
		entry := fileOutcomeResponse{Name: uploads[i].Name}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		} else {
			entry.OK = true
			entry.ID = outcome.File.ID.String()
		}
		resp = append(resp, entry)
	}
	RespondOK(c, gin.H{"files": resp})
}

// GET /api/projects/:id/files
func (h *FileHandler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	files, err := h.fileService.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, files)
}
