package storage

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// MemoryStorage keeps job records in a mutex-guarded map.
// It offers the same atomicity as Storage within a single process.
type MemoryStorage struct {
	mu      sync.Mutex
	records map[string]*domain.JobRecord
	now     func() time.Time
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*domain.JobRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStorage) InsertIfAbsent(_ context.Context, rec *domain.JobRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.DocumentID]; exists {
		return false, nil
	}

	stored := cloneRecord(rec)
	now := m.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.records[rec.DocumentID] = stored
	return true, nil
}

func (m *MemoryStorage) Get(_ context.Context, documentID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[documentID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStorage) ConditionalUpdate(_ context.Context, documentID string, expected domain.JobStatus, patch domain.Patch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[documentID]
	if !ok || rec.Status != expected {
		return false, nil
	}
	patch.Apply(rec, m.now())
	return true, nil
}

func (m *MemoryStorage) Update(_ context.Context, documentID string, patch domain.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[documentID]
	if !ok {
		return domain.ErrJobNotFound
	}
	patch.Apply(rec, m.now())
	return nil
}

// Put stores a record as-is, replacing any existing one
func (m *MemoryStorage) Put(rec *domain.JobRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.DocumentID] = cloneRecord(rec)
}

func cloneRecord(rec *domain.JobRecord) *domain.JobRecord {
	out := *rec
	if rec.Result != nil {
		result := rec.Result.Clone()
		out.Result = &result
	}
	return &out
}
