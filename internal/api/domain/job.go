package domain

import (
	"errors"
)

const (
	JobStatusClaimed    = "CLAIMED"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusSucceeded  = "SUCCEEDED"
	JobStatusFailed     = "FAILED"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// ValidStatus reports whether status is a job status clients may filter by
func ValidStatus(status string) bool {
	switch status {
	case JobStatusClaimed, JobStatusInProgress, JobStatusSucceeded, JobStatusFailed:
		return true
	}
	return false
}
