package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when no record exists for a document
	ErrJobNotFound = errors.New("job record not found")

	// ErrInvalidMessage is returned when an analysis request message is malformed
	ErrInvalidMessage = errors.New("invalid analysis message")

	// ErrInvalidLocation is returned when a storage location cannot be parsed
	ErrInvalidLocation = errors.New("invalid storage location")
)

// ErrorKind classifies coordination failures
type ErrorKind string

const (
	KindStaging      ErrorKind = "StagingError"
	KindSubmission   ErrorKind = "SubmissionError"
	KindEngine       ErrorKind = "EngineFailure"
	KindPollTimeout  ErrorKind = "PollTimeout"
	KindClaimStalled ErrorKind = "ClaimStalled"
	KindCoordination ErrorKind = "CoordinationError"
)

// Error is a structured coordination failure surfaced to callers
type Error struct {
	Kind       ErrorKind
	DocumentID string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new coordination error
func NewError(kind ErrorKind, documentID, message string, err error) error {
	return &Error{Kind: kind, DocumentID: documentID, Message: message, Err: err}
}

// KindOf returns the kind of a coordination error, or "" for other errors
func KindOf(err error) ErrorKind {
	var coordErr *Error
	if errors.As(err, &coordErr) {
		return coordErr.Kind
	}
	return ""
}

// IsKind reports whether err is a coordination error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
