// Package manifest reads batch manifests: JSON documents in S3 listing the files to analyze.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// MaxSize bounds the manifest body read from the store
const MaxSize = 1 << 20

var (
	ErrInvalidManifest  = errors.New("invalid manifest")
	ErrManifestNotFound = errors.New("manifest not found")
)

// Entry is one file listed in a manifest
type Entry struct {
	DocumentID     string `json:"document_id"`
	SourceLocation string `json:"source_location"`
}

type document struct {
	Files *[]Entry `json:"files"`
}

// ObjectGetter is the subset of the S3 client used to read manifests
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader loads manifests from S3
type S3Reader struct {
	client ObjectGetter
	logger *slog.Logger
}

// NewS3Reader creates a new S3Reader instance
func NewS3Reader(client ObjectGetter, logger *slog.Logger) *S3Reader {
	return &S3Reader{client: client, logger: logger}
}

// Read fetches the manifest at an s3:// location and returns its files.
// Entries are returned as listed; each is validated when it is submitted.
func (r *S3Reader) Read(ctx context.Context, location string) ([]Entry, error) {
	loc, err := domain.ParseLocation(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, location)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", location, err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidManifest, MaxSize)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Manifest loaded",
		slog.String("manifest", location),
		slog.Int("files", len(entries)),
	)
	return entries, nil
}

// Parse decodes a manifest body. The "files" key is required.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if doc.Files == nil {
		return nil, fmt.Errorf("%w: missing 'files' key", ErrInvalidManifest)
	}
	return *doc.Files, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}
