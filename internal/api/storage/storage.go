package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/docanalysis/internal/api/domain"
	"github.com/cuongbtq/docanalysis/internal/api/model"
)

const selectColumns = `
	document_id, owner, status, engine_job_id, result,
	page_count, error_message, attempts, created_at, updated_at
`

// Storage is the API's read-only view of analysis job records
type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) GetJobByDocumentID(ctx context.Context, documentID string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM analysis_jobs WHERE document_id = ?`)

	err := s.db.GetContext(ctx, &job, query, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt  time.Time
	DocumentID string
}

// ListJobs returns up to PageSize+1 jobs, newest first, so callers can tell whether another page exists
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error) {
	query := `SELECT ` + selectColumns + ` FROM analysis_jobs WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if filter.Cursor != nil {
		query += " AND (created_at, document_id) < (?, ?)"
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.DocumentID)
	}

	// Order by created_at DESC, document_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, document_id DESC LIMIT ?"
	args = append(args, filter.PageSize+1)

	var jobs []model.AnalysisJob
	err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
