package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/docanalysis/internal/api/domain"
	"github.com/cuongbtq/docanalysis/internal/api/dto"
	"github.com/cuongbtq/docanalysis/internal/api/manifest"
	"github.com/cuongbtq/docanalysis/internal/api/model"
	"github.com/cuongbtq/docanalysis/internal/api/storage"
	workerdomain "github.com/cuongbtq/docanalysis/internal/worker/domain"
	"github.com/cuongbtq/docanalysis/internal/worker/normalize"
)

const (
	submitStatusQueued   = "QUEUED"
	submitStatusRejected = "REJECTED"
	errPublishFailed     = "failed to queue document"

	defaultPageSize = 20
	maxPageSize     = 100

	maxManifestDocuments = 1000
)

// SubmitDocument handles POST /api/v1/documents
// Queues a document for analysis. A missing document_id is generated.
func (h *JobHandler) SubmitDocument(c *gin.Context) {
	h.logger.Info("SubmitDocument called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp := h.submit(c, req)
	if resp.Status == submitStatusRejected {
		status := http.StatusBadRequest
		if resp.Error == errPublishFailed {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error":       resp.Error,
			"document_id": resp.DocumentID,
		})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// SubmitBatch handles POST /api/v1/documents/batch
// Queues every listed document, or every file of an s3:// manifest;
// invalid entries are reported, not fatal.
func (h *JobHandler) SubmitBatch(c *gin.Context) {
	h.logger.Info("SubmitBatch called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	req.Manifest = strings.TrimSpace(req.Manifest)
	if (len(req.Documents) == 0) == (req.Manifest == "") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Provide either documents or manifest",
		})
		return
	}

	documents := req.Documents
	if req.Manifest != "" {
		var ok bool
		if documents, ok = h.loadManifest(c, req.Manifest); !ok {
			return
		}
	}

	resp := dto.SubmitBatchResponse{
		Manifest:  req.Manifest,
		Documents: make([]dto.SubmitDocumentResponse, 0, len(documents)),
	}
	for _, doc := range documents {
		result := h.submit(c, doc)
		if result.Status == submitStatusQueued {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
		resp.Documents = append(resp.Documents, result)
	}

	h.logger.Info("Batch submitted",
		slog.Int("accepted", resp.Accepted),
		slog.Int("rejected", resp.Rejected),
	)

	c.JSON(http.StatusAccepted, resp)
}

// loadManifest reads a manifest and writes the error response when it cannot be used
func (h *JobHandler) loadManifest(c *gin.Context, location string) ([]dto.SubmitDocumentRequest, bool) {
	if h.manifests == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Manifest submission is not enabled",
		})
		return nil, false
	}

	entries, err := h.manifests.Read(c.Request.Context(), location)
	if err != nil {
		h.logger.Error("Failed to load manifest",
			slog.String("manifest", location),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, manifest.ErrInvalidManifest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, manifest.ErrManifestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Manifest not found"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to read manifest"})
		}
		return nil, false
	}

	if len(entries) == 0 || len(entries) > maxManifestDocuments {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Manifest must list between 1 and %d files", maxManifestDocuments),
		})
		return nil, false
	}

	documents := make([]dto.SubmitDocumentRequest, 0, len(entries))
	for _, e := range entries {
		documents = append(documents, dto.SubmitDocumentRequest{
			DocumentID:     e.DocumentID,
			SourceLocation: e.SourceLocation,
		})
	}
	return documents, true
}

func (h *JobHandler) submit(c *gin.Context, req dto.SubmitDocumentRequest) dto.SubmitDocumentResponse {
	resp := dto.SubmitDocumentResponse{
		DocumentID:     strings.TrimSpace(req.DocumentID),
		SourceLocation: req.SourceLocation,
		Status:         submitStatusRejected,
	}
	if resp.DocumentID == "" {
		resp.DocumentID = uuid.NewString()
	}

	if _, err := workerdomain.ParseLocation(req.SourceLocation); err != nil {
		resp.Error = err.Error()
		return resp
	}

	body, err := json.Marshal(workerdomain.AnalysisMessage{
		DocumentID:     resp.DocumentID,
		SourceLocation: req.SourceLocation,
	})
	if err != nil {
		resp.Error = fmt.Sprintf("failed to encode request: %v", err)
		return resp
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish analysis request",
			slog.String("document_id", resp.DocumentID),
			slog.String("error", err.Error()),
		)
		resp.Error = errPublishFailed
		return resp
	}

	h.logger.Info("Analysis request queued",
		slog.String("document_id", resp.DocumentID),
		slog.String("source_location", req.SourceLocation),
	)
	resp.Status = submitStatusQueued
	return resp
}

// GetDocument handles GET /api/v1/documents/:document_id
// Retrieves the job record of a document, including its result once SUCCEEDED
func (h *JobHandler) GetDocument(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job, true))
}

// GetDocumentText handles GET /api/v1/documents/:document_id/text
// Renders a SUCCEEDED result as aligned plain text
func (h *JobHandler) GetDocumentText(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status != domain.JobStatusSucceeded {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "analysis has not succeeded",
			"document_id": job.DocumentID,
			"status":      job.Status,
		})
		return
	}

	var result workerdomain.NormalizedResult
	if err := json.Unmarshal([]byte(job.Result.String), &result); err != nil {
		h.logger.Error("Failed to decode stored result",
			slog.String("document_id", job.DocumentID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to decode stored result",
		})
		return
	}

	c.String(http.StatusOK, normalize.Render(result))
}

// GetDocumentProgress handles GET /api/v1/documents/:document_id/progress
// Returns the latest progress report, which expires some time after the job ends
func (h *JobHandler) GetDocumentProgress(c *gin.Context) {
	documentID := c.Param("document_id")

	if h.progress == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "progress tracking is disabled",
		})
		return
	}

	entry, err := h.progress.Get(c.Request.Context(), documentID)
	if err != nil {
		h.logger.Error("Failed to get progress",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get progress",
		})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":       "no progress recorded",
			"document_id": documentID,
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListDocuments handles GET /api/v1/documents
// Lists job records with optional status filter and cursor pagination
func (h *JobHandler) ListDocuments(c *gin.Context) {
	h.logger.Info("ListDocuments called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !domain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid status %q", req.Status),
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i], false)
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt:  last.CreatedAt,
			DocumentID: last.DocumentID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// loadJob fetches the record named by the path, writing the error response itself
func (h *JobHandler) loadJob(c *gin.Context) (*model.AnalysisJob, bool) {
	documentID := c.Param("document_id")

	h.logger.Info("Document lookup",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("document_id", documentID),
	)

	job, err := h.storage.GetJobByDocumentID(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":       "document not found",
				"document_id": documentID,
			})
			return nil, false
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return nil, false
	}

	return job, true
}

func toJobDTO(job *model.AnalysisJob, withResult bool) dto.JobDTO {
	out := dto.JobDTO{
		DocumentID:  job.DocumentID,
		Owner:       job.Owner,
		Status:      job.Status,
		EngineJobID: job.EngineJobID.String,
		PageCount:   int(job.PageCount.Int64),
		Error:       job.ErrorMessage.String,
		Attempts:    job.Attempts,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
	if withResult && job.Result.Valid && job.Result.String != "" {
		out.Result = json.RawMessage(job.Result.String)
	}
	return out
}
