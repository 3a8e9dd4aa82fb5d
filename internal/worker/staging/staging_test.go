package staging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

type fakeObjectAPI struct {
	mu        sync.Mutex
	copies    []*s3.CopyObjectInput
	deletes   []*s3.DeleteObjectInput
	copyErr   error
	deleteErr error
}

func (f *fakeObjectAPI) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	f.copies = append(f.copies, in)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, in)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStager(api ObjectAPI) *S3Stager {
	return NewS3Stager(api, Config{TempBucket: "temp-bucket", KeyPrefix: "staged/"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestS3Stager_Stage(t *testing.T) {
	api := &fakeObjectAPI{}
	stager := newTestStager(api)

	staged, err := stager.Stage(context.Background(), "s3://source-bucket/user 1/raw/menu.pdf")
	require.NoError(t, err)

	loc, err := domain.ParseLocation(staged)
	require.NoError(t, err)
	assert.Equal(t, "temp-bucket", loc.Bucket)
	assert.True(t, strings.HasPrefix(loc.Key, "staged/"))
	assert.True(t, strings.HasSuffix(loc.Key, "_menu.pdf"))

	require.Len(t, api.copies, 1)
	assert.Equal(t, "source-bucket/user%201/raw/menu.pdf", aws.ToString(api.copies[0].CopySource))
	assert.Equal(t, loc.Key, aws.ToString(api.copies[0].Key))
}

func TestS3Stager_StageUniqueNames(t *testing.T) {
	stager := newTestStager(&fakeObjectAPI{})

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			staged, err := stager.Stage(context.Background(), "s3://source/doc.pdf")
			assert.NoError(t, err)
			mu.Lock()
			seen[staged] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
}

func TestS3Stager_StageErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		copyErr error
		wantIs  error
	}{
		{
			name:   "invalid source",
			source: "/tmp/doc.pdf",
			wantIs: domain.ErrInvalidLocation,
		},
		{
			name:    "copy denied",
			source:  "s3://source/doc.pdf",
			copyErr: errors.New("AccessDenied"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stager := newTestStager(&fakeObjectAPI{copyErr: tt.copyErr})

			staged, err := stager.Stage(context.Background(), tt.source)
			require.Error(t, err)
			assert.Empty(t, staged)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestS3Stager_Unstage(t *testing.T) {
	t.Run("empty location is a no-op", func(t *testing.T) {
		api := &fakeObjectAPI{}
		require.NoError(t, newTestStager(api).Unstage(context.Background(), ""))
		assert.Empty(t, api.deletes)
	})

	t.Run("deletes staged object", func(t *testing.T) {
		api := &fakeObjectAPI{}
		require.NoError(t, newTestStager(api).Unstage(context.Background(), "s3://temp-bucket/staged/abc_doc.pdf"))
		require.Len(t, api.deletes, 1)
		assert.Equal(t, "staged/abc_doc.pdf", aws.ToString(api.deletes[0].Key))
	})

	t.Run("missing object is a no-op", func(t *testing.T) {
		api := &fakeObjectAPI{deleteErr: &types.NoSuchKey{}}
		assert.NoError(t, newTestStager(api).Unstage(context.Background(), "s3://temp-bucket/gone.pdf"))
	})

	t.Run("other delete errors reported", func(t *testing.T) {
		api := &fakeObjectAPI{deleteErr: errors.New("throttled")}
		assert.Error(t, newTestStager(api).Unstage(context.Background(), "s3://temp-bucket/doc.pdf"))
	})
}
