// Package engine adapts AWS Textract asynchronous document analysis to the coordinator.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// TextractAPI is the subset of the Textract client used by the engine
type TextractAPI interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

// Textract submits staged documents for analysis and reads back paginated blocks
type Textract struct {
	client     TextractAPI
	maxResults int32
	logger     *slog.Logger
}

// NewTextract creates a new Textract engine. maxResults <= 0 uses the service default page size.
func NewTextract(client TextractAPI, maxResults int32, logger *slog.Logger) *Textract {
	return &Textract{
		client:     client,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Submit starts document analysis for a staged s3:// location and returns the engine job id
func (t *Textract) Submit(ctx context.Context, staged string, opts domain.SubmitOptions) (string, error) {
	loc, err := domain.ParseLocation(staged)
	if err != nil {
		return "", err
	}

	features := make([]types.FeatureType, 0, len(opts.FeatureTypes))
	for _, f := range opts.FeatureTypes {
		features = append(features, types.FeatureType(f))
	}
	if len(features) == 0 {
		features = append(features, types.FeatureTypeTables)
	}

	out, err := t.client.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(loc.Bucket),
				Name:   aws.String(loc.Key),
			},
		},
		FeatureTypes: features,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start document analysis: %w", err)
	}

	jobID := aws.ToString(out.JobId)
	if jobID == "" {
		return "", fmt.Errorf("textract returned an empty job id")
	}

	t.logger.Info("Document analysis started",
		slog.String("engine_job_id", jobID),
		slog.String("staged", staged),
	)
	return jobID, nil
}

// GetStatus returns the job status and, once finished, the first page of blocks
func (t *Textract) GetStatus(ctx context.Context, engineJobID string) (*domain.StatusPage, error) {
	out, err := t.get(ctx, engineJobID, "")
	if err != nil {
		return nil, err
	}

	status := &domain.StatusPage{
		Status:        mapStatus(out.JobStatus),
		StatusMessage: aws.ToString(out.StatusMessage),
	}
	if out.DocumentMetadata != nil {
		status.PageCount = int(aws.ToInt32(out.DocumentMetadata.Pages))
	}
	if status.Status == domain.EngineStatusSucceeded {
		status.Page = domain.ResultPage{
			Blocks:    convertBlocks(out.Blocks),
			NextToken: aws.ToString(out.NextToken),
		}
	}
	return status, nil
}

// GetNextPage fetches the chunk addressed by a continuation token
func (t *Textract) GetNextPage(ctx context.Context, engineJobID, token string) (*domain.ResultPage, error) {
	out, err := t.get(ctx, engineJobID, token)
	if err != nil {
		return nil, err
	}
	return &domain.ResultPage{
		Blocks:    convertBlocks(out.Blocks),
		NextToken: aws.ToString(out.NextToken),
	}, nil
}

func (t *Textract) get(ctx context.Context, engineJobID, token string) (*textract.GetDocumentAnalysisOutput, error) {
	in := &textract.GetDocumentAnalysisInput{JobId: aws.String(engineJobID)}
	if token != "" {
		in.NextToken = aws.String(token)
	}
	if t.maxResults > 0 {
		in.MaxResults = aws.Int32(t.maxResults)
	}

	out, err := t.client.GetDocumentAnalysis(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to get document analysis %s: %w", engineJobID, err)
	}
	return out, nil
}

// mapStatus folds PARTIAL_SUCCESS into FAILED: partial output is never cached
func mapStatus(s types.JobStatus) domain.EngineStatus {
	switch s {
	case types.JobStatusSucceeded:
		return domain.EngineStatusSucceeded
	case types.JobStatusFailed, types.JobStatusPartialSuccess:
		return domain.EngineStatusFailed
	default:
		return domain.EngineStatusInProgress
	}
}

func convertBlocks(blocks []types.Block) []domain.Block {
	out := make([]domain.Block, 0, len(blocks))
	for _, b := range blocks {
		block := domain.Block{
			ID:          aws.ToString(b.Id),
			Type:        string(b.BlockType),
			Text:        aws.ToString(b.Text),
			Page:        int(aws.ToInt32(b.Page)),
			RowIndex:    int(aws.ToInt32(b.RowIndex)),
			ColumnIndex: int(aws.ToInt32(b.ColumnIndex)),

			SelectionStatus: string(b.SelectionStatus),
		}
		for _, rel := range b.Relationships {
			if rel.Type == types.RelationshipTypeChild {
				block.Children = append(block.Children, rel.Ids...)
			}
		}
		out = append(out, block)
	}
	return out
}
