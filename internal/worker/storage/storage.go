package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage persists analysis job records in a SQL database.
// Every mutation is a single statement, so per-document changes are atomic.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// recordRow mirrors the analysis_jobs table
type recordRow struct {
	DocumentID   string         `db:"document_id"`
	Owner        string         `db:"owner"`
	Status       string         `db:"status"`
	EngineJobID  sql.NullString `db:"engine_job_id"`
	Result       sql.NullString `db:"result"`
	PageCount    sql.NullInt64  `db:"page_count"`
	ErrorMessage sql.NullString `db:"error_message"`
	Attempts     int            `db:"attempts"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *recordRow) toDomain() (*domain.JobRecord, error) {
	rec := &domain.JobRecord{
		DocumentID:  r.DocumentID,
		Owner:       r.Owner,
		Status:      domain.JobStatus(r.Status),
		EngineJobID: r.EngineJobID.String,
		PageCount:   int(r.PageCount.Int64),
		Error:       r.ErrorMessage.String,
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Result.Valid && r.Result.String != "" {
		var result domain.NormalizedResult
		if err := json.Unmarshal([]byte(r.Result.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		rec.Result = &result
	}
	return rec, nil
}

// InsertIfAbsent inserts a new record keyed by its document id.
// It returns false when a record for the document already exists.
func (s *Storage) InsertIfAbsent(ctx context.Context, rec *domain.JobRecord) (bool, error) {
	query := s.db.Rebind(`
		INSERT INTO analysis_jobs (
			document_id, owner, status, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO NOTHING
	`)

	now := s.now()
	result, err := s.db.ExecContext(ctx, query,
		rec.DocumentID,
		rec.Owner,
		string(rec.Status),
		rec.Attempts,
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert job record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Debug("Job record already exists",
			slog.String("document_id", rec.DocumentID),
		)
		return false, nil
	}

	s.logger.Info("Job record claimed",
		slog.String("document_id", rec.DocumentID),
		slog.String("owner", rec.Owner),
	)
	return true, nil
}

// Get retrieves the record for a document
func (s *Storage) Get(ctx context.Context, documentID string) (*domain.JobRecord, error) {
	query := s.db.Rebind(`
		SELECT document_id, owner, status, engine_job_id, result, page_count,
		       error_message, attempts, created_at, updated_at
		FROM analysis_jobs
		WHERE document_id = ?
	`)

	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	return row.toDomain()
}

// ConditionalUpdate applies patch only if the record is currently in the expected status
func (s *Storage) ConditionalUpdate(ctx context.Context, documentID string, expected domain.JobStatus, patch domain.Patch) (bool, error) {
	rowsAffected, err := s.update(ctx, documentID, &expected, patch)
	if err != nil {
		return false, err
	}

	if rowsAffected == 0 {
		s.logger.Warn("Conditional update lost - status changed",
			slog.String("document_id", documentID),
			slog.String("expected_status", string(expected)),
		)
		return false, nil
	}
	return true, nil
}

// Update applies patch unconditionally. Only the record's current owner calls this.
func (s *Storage) Update(ctx context.Context, documentID string, patch domain.Patch) error {
	rowsAffected, err := s.update(ctx, documentID, nil, patch)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *Storage) update(ctx context.Context, documentID string, expected *domain.JobStatus, patch domain.Patch) (int64, error) {
	sets, args, err := patchClauses(patch, s.now())
	if err != nil {
		return 0, err
	}

	query := "UPDATE analysis_jobs SET " + strings.Join(sets, ", ") + " WHERE document_id = ?"
	args = append(args, documentID)
	if expected != nil {
		query += " AND status = ?"
		args = append(args, string(*expected))
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update job record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 && patch.Status != "" {
		s.logger.Info("Job record status updated",
			slog.String("document_id", documentID),
			slog.String("status", string(patch.Status)),
		)
	}
	return rowsAffected, nil
}

// patchClauses renders a patch as SET clauses with "?" placeholders
func patchClauses(patch domain.Patch, now time.Time) ([]string, []any, error) {
	sets := []string{"updated_at = ?"}
	args := []any{now}

	if patch.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, string(patch.Status))
	}
	if patch.Owner != "" {
		sets = append(sets, "owner = ?")
		args = append(args, patch.Owner)
	}

	switch {
	case patch.EngineJobID != "":
		sets = append(sets, "engine_job_id = ?")
		args = append(args, patch.EngineJobID)
	case patch.ClearEngineJobID:
		sets = append(sets, "engine_job_id = NULL")
	}

	switch {
	case patch.Result != nil:
		resultJSON, err := json.Marshal(patch.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		sets = append(sets, "result = ?", "page_count = ?")
		args = append(args, string(resultJSON), patch.PageCount)
	case patch.ClearResult:
		sets = append(sets, "result = NULL", "page_count = NULL")
	}

	switch {
	case patch.Error != "":
		sets = append(sets, "error_message = ?")
		args = append(args, patch.Error)
	case patch.ClearError:
		sets = append(sets, "error_message = NULL")
	}

	if patch.IncrementAttempts {
		sets = append(sets, "attempts = attempts + 1")
	}

	return sets, args, nil
}
