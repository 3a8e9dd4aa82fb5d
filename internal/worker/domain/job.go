package domain

import "time"

// JobRecord is the durable coordination record for one document.
// DocumentID is the primary key; at most one record exists per document.
type JobRecord struct {
	DocumentID  string
	Owner       string
	Status      JobStatus
	EngineJobID string
	Result      *NormalizedResult
	PageCount   int
	Error       string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Outcome returns the cached outcome of a SUCCEEDED record
func (r *JobRecord) Outcome() *Outcome {
	result := NormalizedResult{}
	if r.Result != nil {
		result = *r.Result
	}
	return &Outcome{Result: result, PageCount: r.PageCount}
}

// Patch describes field changes applied to a JobRecord in a single store operation.
// Zero-valued fields are left untouched unless the matching Clear flag is set.
type Patch struct {
	Status            JobStatus
	Owner             string
	EngineJobID       string
	ClearEngineJobID  bool
	Result            *NormalizedResult
	PageCount         int
	ClearResult       bool
	Error             string
	ClearError        bool
	IncrementAttempts bool
}

// Apply mutates rec in place according to the patch
func (p Patch) Apply(rec *JobRecord, now time.Time) {
	if p.Status != "" {
		rec.Status = p.Status
	}
	if p.Owner != "" {
		rec.Owner = p.Owner
	}
	if p.ClearEngineJobID {
		rec.EngineJobID = ""
	}
	if p.EngineJobID != "" {
		rec.EngineJobID = p.EngineJobID
	}
	if p.ClearResult {
		rec.Result = nil
		rec.PageCount = 0
	}
	if p.Result != nil {
		result := p.Result.Clone()
		rec.Result = &result
		rec.PageCount = p.PageCount
	}
	if p.ClearError {
		rec.Error = ""
	}
	if p.Error != "" {
		rec.Error = p.Error
	}
	if p.IncrementAttempts {
		rec.Attempts++
	}
	rec.UpdatedAt = now
}

// ReclaimPatch resets a FAILED record so that owner can start a fresh attempt
func ReclaimPatch(owner string) Patch {
	return Patch{
		Status:            JobStatusClaimed,
		Owner:             owner,
		ClearEngineJobID:  true,
		ClearResult:       true,
		ClearError:        true,
		IncrementAttempts: true,
	}
}

// StartedPatch records a successful engine submission
func StartedPatch(engineJobID string) Patch {
	return Patch{
		Status:            JobStatusInProgress,
		EngineJobID:       engineJobID,
		IncrementAttempts: true,
	}
}

// SucceededPatch stores the normalized result and page count together
func SucceededPatch(outcome *Outcome) Patch {
	result := outcome.Result
	return Patch{
		Status:     JobStatusSucceeded,
		Result:     &result,
		PageCount:  outcome.PageCount,
		ClearError: true,
	}
}

// FailedPatch records a terminal failure message
func FailedPatch(message string) Patch {
	return Patch{
		Status: JobStatusFailed,
		Error:  message,
	}
}

// AnalysisMessage represents an analysis request message from RabbitMQ
type AnalysisMessage struct {
	DocumentID     string `json:"document_id"`
	SourceLocation string `json:"source_location"`
	DeliveryTag    uint64 `json:"-"`
}
