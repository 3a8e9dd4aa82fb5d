package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/docanalysis/internal/api/manifest"
	"github.com/cuongbtq/docanalysis/internal/api/model"
	"github.com/cuongbtq/docanalysis/internal/api/storage"
	"github.com/cuongbtq/docanalysis/internal/worker/progress"
)

// JobStore reads analysis job records
type JobStore interface {
	GetJobByDocumentID(ctx context.Context, documentID string) (*model.AnalysisJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.AnalysisJob, error)
}

// Publisher sends analysis requests to the worker queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// ProgressReader looks up a document's latest progress report
type ProgressReader interface {
	Get(ctx context.Context, documentID string) (*progress.Entry, error)
}

// ManifestReader loads the file list of a batch manifest
type ManifestReader interface {
	Read(ctx context.Context, location string) ([]manifest.Entry, error)
}

// HealthChecker is implemented by the backing service clients
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers.
// Progress and Manifests may be nil when the feature is disabled.
type Dependencies struct {
	Logger       *slog.Logger
	Storage      JobStore
	Publisher    Publisher
	Progress     ProgressReader
	Manifests    ManifestReader
	HealthChecks map[string]HealthChecker
}

// JobHandler handles document analysis HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	storage   JobStore
	publisher Publisher
	progress  ProgressReader
	manifests ManifestReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		storage:   deps.Storage,
		publisher: deps.Publisher,
		progress:  deps.Progress,
		manifests: deps.Manifests,
	}
}
