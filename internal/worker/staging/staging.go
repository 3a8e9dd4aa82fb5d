// Package staging copies source documents into the bucket the analysis engine reads from.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// ObjectAPI is the subset of the S3 client used for staging
type ObjectAPI interface {
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds staging configuration
type Config struct {
	TempBucket string
	KeyPrefix  string
}

// S3Stager stages documents by copying them into a temporary bucket
type S3Stager struct {
	client ObjectAPI
	cfg    Config
	logger *slog.Logger
}

// NewS3Stager creates a new S3Stager
func NewS3Stager(client ObjectAPI, cfg Config, logger *slog.Logger) *S3Stager {
	return &S3Stager{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Stage copies source into the temp bucket under a name that is unique per call
// and returns the staged s3:// location.
func (s *S3Stager) Stage(ctx context.Context, source string) (string, error) {
	src, err := domain.ParseLocation(source)
	if err != nil {
		return "", err
	}

	staged := domain.Location{
		Bucket: s.cfg.TempBucket,
		Key:    s.cfg.KeyPrefix + stagedName(src),
	}

	s.logger.Info("Staging document",
		slog.String("source", src.String()),
		slog.String("staged", staged.String()),
	)

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(staged.Bucket),
		Key:        aws.String(staged.Key),
		CopySource: aws.String(copySource(src)),
	})
	if err != nil {
		s.logger.Error("Failed to stage document",
			slog.String("source", src.String()),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return staged.String(), nil
}

// Unstage deletes a staged object. Empty locations and missing objects are not errors.
func (s *S3Stager) Unstage(ctx context.Context, staged string) error {
	if staged == "" {
		return nil
	}

	loc, err := domain.ParseLocation(staged)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("Staged object already gone",
				slog.String("staged", staged),
			)
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", staged, err)
	}

	s.logger.Info("Staged document removed",
		slog.String("staged", staged),
	)
	return nil
}

func stagedName(src domain.Location) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + src.BaseName()
}

// copySource URL-encodes bucket/key as CopyObject requires, keeping slashes
func copySource(src domain.Location) string {
	return (&url.URL{Path: src.Bucket + "/" + src.Key}).EscapedPath()
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
