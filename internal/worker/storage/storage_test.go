package storage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

type recordStore interface {
	InsertIfAbsent(ctx context.Context, rec *domain.JobRecord) (bool, error)
	Get(ctx context.Context, documentID string) (*domain.JobRecord, error)
	ConditionalUpdate(ctx context.Context, documentID string, expected domain.JobStatus, patch domain.Patch) (bool, error)
	Update(ctx context.Context, documentID string, patch domain.Patch) error
}

func newSQLiteStorage(t *testing.T) *Storage {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// a second connection would open a different in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewStorage(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func stores(t *testing.T) map[string]recordStore {
	return map[string]recordStore{
		"sqlite": newSQLiteStorage(t),
		"memory": NewMemoryStorage(),
	}
}

func claimed(documentID, owner string) *domain.JobRecord {
	return &domain.JobRecord{
		DocumentID: documentID,
		Owner:      owner,
		Status:     domain.JobStatusClaimed,
	}
}

func TestStorage_InsertIfAbsent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			inserted, err := store.InsertIfAbsent(ctx, claimed("doc-1", "owner-a"))
			require.NoError(t, err)
			assert.True(t, inserted)

			inserted, err = store.InsertIfAbsent(ctx, claimed("doc-1", "owner-b"))
			require.NoError(t, err)
			assert.False(t, inserted)

			rec, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, "owner-a", rec.Owner)
			assert.Equal(t, domain.JobStatusClaimed, rec.Status)
			assert.Empty(t, rec.EngineJobID)
			assert.Nil(t, rec.Result)
			assert.Equal(t, 0, rec.Attempts)
			assert.False(t, rec.CreatedAt.IsZero())
		})
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, domain.ErrJobNotFound)
		})
	}
}

func TestStorage_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.InsertIfAbsent(ctx, claimed("doc-1", "owner-a"))
			require.NoError(t, err)

			require.NoError(t, store.Update(ctx, "doc-1", domain.StartedPatch("job-1")))
			rec, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusInProgress, rec.Status)
			assert.Equal(t, "job-1", rec.EngineJobID)
			assert.Equal(t, 1, rec.Attempts)

			outcome := &domain.Outcome{
				Result: domain.NormalizedResult{
					Tables: []domain.Table{{{"A", "B"}}},
					Lines:  []string{"x", "y"},
				},
				PageCount: 2,
			}
			require.NoError(t, store.Update(ctx, "doc-1", domain.SucceededPatch(outcome)))

			rec, err = store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusSucceeded, rec.Status)
			require.NotNil(t, rec.Result)
			assert.Equal(t, outcome.Result, *rec.Result)
			assert.Equal(t, 2, rec.PageCount)
			assert.Equal(t, 1, rec.Attempts)
		})
	}
}

func TestStorage_ReclaimFailed(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.InsertIfAbsent(ctx, claimed("doc-1", "owner-a"))
			require.NoError(t, err)
			require.NoError(t, store.Update(ctx, "doc-1", domain.StartedPatch("job-1")))
			require.NoError(t, store.Update(ctx, "doc-1", domain.FailedPatch("engine failed")))

			ok, err := store.ConditionalUpdate(ctx, "doc-1", domain.JobStatusInProgress, domain.ReclaimPatch("owner-b"))
			require.NoError(t, err)
			assert.False(t, ok, "status precondition must hold")

			ok, err = store.ConditionalUpdate(ctx, "doc-1", domain.JobStatusFailed, domain.ReclaimPatch("owner-b"))
			require.NoError(t, err)
			assert.True(t, ok)

			rec, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusClaimed, rec.Status)
			assert.Equal(t, "owner-b", rec.Owner)
			assert.Empty(t, rec.EngineJobID)
			assert.Empty(t, rec.Error)
			assert.Nil(t, rec.Result)
			assert.Equal(t, 2, rec.Attempts)
		})
	}
}

func TestStorage_ConcurrentReclaimHasOneWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.InsertIfAbsent(ctx, claimed("doc-1", "owner-a"))
			require.NoError(t, err)
			require.NoError(t, store.Update(ctx, "doc-1", domain.FailedPatch("boom")))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for _, owner := range []string{"owner-b", "owner-c", "owner-d", "owner-e"} {
				wg.Add(1)
				go func(owner string) {
					defer wg.Done()
					ok, err := store.ConditionalUpdate(ctx, "doc-1", domain.JobStatusFailed, domain.ReclaimPatch(owner))
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}(owner)
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
			rec, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusClaimed, rec.Status)
			assert.Equal(t, 1, rec.Attempts)
		})
	}
}

func TestStorage_UpdateMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Update(context.Background(), "missing", domain.FailedPatch("x"))
			assert.ErrorIs(t, err, domain.ErrJobNotFound)
		})
	}
}

func TestPatchClauses(t *testing.T) {
	sets, args, err := patchClauses(domain.ReclaimPatch("owner-b"), fixedTime)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"updated_at = ?",
		"status = ?",
		"owner = ?",
		"engine_job_id = NULL",
		"result = NULL",
		"page_count = NULL",
		"error_message = NULL",
		"attempts = attempts + 1",
	}, sets)
	assert.Equal(t, []any{fixedTime, "CLAIMED", "owner-b"}, args)
}

var fixedTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
