package domain

// JobStatus is the coordination state of a document's analysis record
type JobStatus string

// Job status constants
const (
	JobStatusClaimed    JobStatus = "CLAIMED"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// EngineStatus is the status reported by the analysis engine for a submitted job
type EngineStatus string

// Engine status constants
const (
	EngineStatusInProgress EngineStatus = "IN_PROGRESS"
	EngineStatusSucceeded  EngineStatus = "SUCCEEDED"
	EngineStatusFailed     EngineStatus = "FAILED"
)

// Terminal reports whether the engine will not change this status again
func (s EngineStatus) Terminal() bool {
	return s == EngineStatusSucceeded || s == EngineStatusFailed
}

// Block types produced by the analysis engine
const (
	BlockTypePage  = "PAGE"
	BlockTypeLine  = "LINE"
	BlockTypeWord  = "WORD"
	BlockTypeTable = "TABLE"
	BlockTypeCell  = "CELL"

	BlockTypeSelection = "SELECTION_ELEMENT"
)

// Feature types accepted by the analysis engine
const (
	FeatureTables = "TABLES"
	FeatureForms  = "FORMS"
)
