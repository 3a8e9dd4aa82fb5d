// Package progress keeps a short-lived, human-facing view of each document's analysis stage.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "analysis:progress:"

// Stages reported while a document is coordinated
const (
	StageClaimed   = "claimed"
	StageAttached  = "attached"
	StageStaging   = "staging"
	StageSubmitted = "submitted"
	StagePolling   = "polling"
	StageSucceeded = "succeeded"
	StageFailed    = "failed"
)

// Entry is one document's latest progress report
type Entry struct {
	DocumentID string    `json:"document_id"`
	Stage      string    `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// stagePercent maps each stage to a coarse completion estimate
var stagePercent = map[string]int{
	StageClaimed:   5,
	StageAttached:  10,
	StageStaging:   15,
	StageSubmitted: 30,
	StagePolling:   50,
	StageSucceeded: 100,
	StageFailed:    100,
}

// RedisTracker stores progress entries in Redis with a TTL so the map stays bounded
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTracker creates a tracker whose entries expire after ttl
func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

// Report records the current stage of a document
func (t *RedisTracker) Report(ctx context.Context, documentID, stage, message string) error {
	if documentID == "" {
		return fmt.Errorf("documentID is required")
	}

	entry := Entry{
		DocumentID: documentID,
		Stage:      stage,
		Percent:    min(max(stagePercent[stage], 0), 100),
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if err := t.rdb.Set(ctx, key(documentID), payload, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// Get returns the latest entry for a document, or nil when none is stored
func (t *RedisTracker) Get(ctx context.Context, documentID string) (*Entry, error) {
	data, err := t.rdb.Get(ctx, key(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &entry, nil
}

func key(documentID string) string {
	return keyPrefix + documentID
}
