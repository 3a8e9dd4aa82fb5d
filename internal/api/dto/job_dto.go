package dto

import "encoding/json"

type SubmitDocumentRequest struct {
	DocumentID     string `json:"document_id"`
	SourceLocation string `json:"source_location" binding:"required"`
}

type SubmitDocumentResponse struct {
	DocumentID     string `json:"document_id"`
	SourceLocation string `json:"source_location"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// SubmitBatchRequest lists documents inline or names an s3:// manifest
// with a "files" key. Exactly one of the two is set.
type SubmitBatchRequest struct {
	Documents []SubmitDocumentRequest `json:"documents" binding:"max=100"`
	Manifest  string                  `json:"manifest"`
}

type SubmitBatchResponse struct {
	Manifest  string                   `json:"manifest,omitempty"`
	Accepted  int                      `json:"accepted"`
	Rejected  int                      `json:"rejected"`
	Documents []SubmitDocumentResponse `json:"documents"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	DocumentID  string          `json:"document_id"`
	Owner       string          `json:"owner"`
	Status      string          `json:"status"`
	EngineJobID string          `json:"engine_job_id,omitempty"`
	PageCount   int             `json:"page_count,omitempty"`
	Error       string          `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}
