package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"volleyref-backend/ingest"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"
	"volleyref-backend/service"
	"volleyref-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kart-io/logger"
)

const maxRulebookSize = 10 * 1024 * 1024

// RuleManager is the rule side of the service layer
type RuleManager interface {
	UploadRulebook(ctx context.Context, req service.UploadRulebookRequest) (*models.Rulebook, error)
	StartIngestion(ctx context.Context, rulebookID uuid.UUID) (*models.IngestionJob, error)
	ProcessIngestion(ctx context.Context, jobID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error)
	Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error)
}

// RuleHandler handles rulebook upload, ingestion and search
type RuleHandler struct {
	rules       RuleManager
	maxFileSize int64
	// background runs ingestion jobs; tests replace it to run inline
	background  func(func())
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules RuleManager) *RuleHandler {
	return &RuleHandler{
		rules:       rules,
		maxFileSize: maxRulebookSize,
		background:  func(fn func()) { go fn() },
	}
}

// UploadRulebook handles POST /api/rules/upload
func (h *RuleHandler) UploadRulebook(c *gin.Context) {
	if c.ContentType() != "multipart/form-data" {
		respondError(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Expected multipart/form-data")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = storage.ContentType(fileHeader.Filename)
	}
	if !ingest.IsSupported(mimeType, fileHeader.Filename) {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Allowed types: PDF, TXT, MD")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	rb, err := h.rules.UploadRulebook(c.Request.Context(), service.UploadRulebookRequest{
		Filename: fileHeader.Filename,
		MimeType: mimeType,
		Size:     fileHeader.Size,
		Body:     file,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedType) {
			respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", err.Error())
		return
	}

	respondData(c, http.StatusCreated, rb)
}

// EmbedRulebook handles POST /api/rules/embed. The job runs in the
// background; clients poll GET /api/rules/jobs/:id.
func (h *RuleHandler) EmbedRulebook(c *gin.Context) {
	var req struct {
		RulebookID string `json:"rulebook_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	id, err := uuid.Parse(req.RulebookID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid rulebook_id format")
		return
	}

	job, err := h.rules.StartIngestion(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRulebookNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Rulebook not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INGESTION_FAILED", err.Error())
		return
	}

	// the request context ends with the response
	h.background(func() {
		if err := h.rules.ProcessIngestion(context.Background(), job.ID); err != nil {
			logger.Errorw("ingestion job failed", "job_id", job.ID.String(), "error", err.Error())
		}
	})

	respondData(c, http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Ingestion job created. Poll /api/rules/jobs/:id for updates.",
	})
}

// GetJob handles GET /api/rules/jobs/:id
func (h *RuleHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
		return
	}

	job, err := h.rules.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Ingestion job not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
		return
	}
	respondData(c, http.StatusOK, job)
}

// Search handles POST /api/rules/search
func (h *RuleHandler) Search(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	results, err := h.rules.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			respondError(c, http.StatusBadRequest, "MISSING_QUERY", "query is required")
		case errors.Is(err, retrieval.ErrRetrievalUnavailable):
			respondError(c, http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "SEARCH_FAILED", err.Error())
		}
		return
	}
	respondData(c, http.StatusOK, gin.H{"results": results})
}
