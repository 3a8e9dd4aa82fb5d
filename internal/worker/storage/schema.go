package storage

import (
	"context"
	"fmt"
	"log/slog"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	document_id   TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	status        TEXT NOT NULL,
	engine_job_id TEXT,
	result        JSONB,
	page_count    INTEGER,
	error_message TEXT,
	attempts      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs (status);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created_at ON analysis_jobs (created_at DESC, document_id DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	document_id   TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	status        TEXT NOT NULL,
	engine_job_id TEXT,
	result        TEXT,
	page_count    INTEGER,
	error_message TEXT,
	attempts      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs (status);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created_at ON analysis_jobs (created_at DESC, document_id DESC);
`

// EnsureSchema creates the analysis_jobs table for the connected driver if it is missing
func (s *Storage) EnsureSchema(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == "sqlite" {
		schema = sqliteSchema
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	s.logger.Info("Job record schema ready",
		slog.String("driver", s.db.DriverName()),
	)
	return nil
}
