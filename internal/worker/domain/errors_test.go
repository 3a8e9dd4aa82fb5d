package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindSubmission, "doc-1", "engine rejected submission", cause)

	assert.Equal(t, "SubmissionError: engine rejected submission: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var coordErr *Error
	assert.ErrorAs(t, err, &coordErr)
	assert.Equal(t, "doc-1", coordErr.DocumentID)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"direct", NewError(KindPollTimeout, "d", "late", nil), KindPollTimeout},
		{"wrapped", fmt.Errorf("worker: %w", NewError(KindClaimStalled, "d", "stalled", nil)), KindClaimStalled},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}

	assert.True(t, IsKind(NewError(KindEngine, "d", "x", nil), KindEngine))
	assert.False(t, IsKind(NewError(KindEngine, "d", "x", nil), KindStaging))
}
