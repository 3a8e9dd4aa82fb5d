package model

import (
	"database/sql"
	"time"
)

// AnalysisJob is a read-side row of the analysis_jobs table
type AnalysisJob struct {
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
