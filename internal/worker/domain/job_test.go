package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPatchTransitions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &JobRecord{
		DocumentID:  "doc-1",
		Owner:       "w0-old",
		Status:      JobStatusFailed,
		EngineJobID: "job-old",
		Error:       "EngineFailure: bad scan",
		Attempts:    2,
	}

	ReclaimPatch("w1-new").Apply(rec, now)
	assert.Equal(t, JobStatusClaimed, rec.Status)
	assert.Equal(t, "w1-new", rec.Owner)
	assert.Empty(t, rec.EngineJobID)
	assert.Empty(t, rec.Error)
	assert.Nil(t, rec.Result)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, now, rec.UpdatedAt)

	StartedPatch("job-new").Apply(rec, now)
	assert.Equal(t, JobStatusInProgress, rec.Status)
	assert.Equal(t, "job-new", rec.EngineJobID)
	assert.Equal(t, 4, rec.Attempts)

	result := NormalizedResult{Tables: []Table{{{"A"}}}, Lines: []string{"x"}}
	SucceededPatch(&Outcome{Result: result, PageCount: 3}).Apply(rec, now)
	assert.Equal(t, JobStatusSucceeded, rec.Status)
	assert.Equal(t, 3, rec.PageCount)
	assert.Equal(t, &result, rec.Result)
	assert.Equal(t, 4, rec.Attempts)

	// the stored result is a copy
	result.Lines[0] = "changed"
	assert.Equal(t, "x", rec.Result.Lines[0])

	outcome := rec.Outcome()
	assert.Equal(t, 3, outcome.PageCount)
	assert.Equal(t, []string{"x"}, outcome.Result.Lines)
}

func TestFailedPatchKeepsEngineJobID(t *testing.T) {
	rec := &JobRecord{Status: JobStatusInProgress, EngineJobID: "job-1", Attempts: 1}

	FailedPatch("PollTimeout: too slow").Apply(rec, time.Now())

	assert.Equal(t, JobStatusFailed, rec.Status)
	assert.Equal(t, "job-1", rec.EngineJobID)
	assert.Equal(t, "PollTimeout: too slow", rec.Error)
	assert.Equal(t, 1, rec.Attempts)
}

func TestEngineStatusTerminal(t *testing.T) {
	assert.False(t, EngineStatusInProgress.Terminal())
	assert.True(t, EngineStatusSucceeded.Terminal())
	assert.True(t, EngineStatusFailed.Terminal())
}
