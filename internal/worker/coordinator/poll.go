package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
	"github.com/cuongbtq/docanalysis/internal/worker/normalize"
	"github.com/cuongbtq/docanalysis/internal/worker/progress"
)

// poll queries the engine at a fixed interval until the job reaches a terminal
// status or the poll timeout elapses, then aggregates and normalizes the output.
func (c *Coordinator) poll(ctx context.Context, logger *slog.Logger, documentID, engineJobID string) (*domain.Outcome, error) {
	c.report(ctx, documentID, progress.StagePolling, engineJobID)

	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for checks := 1; ; checks++ {
		status, err := c.engine.GetStatus(pollCtx, engineJobID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, c.pollInterrupted(ctx, documentID, engineJobID)
			}
			return nil, domain.NewError(domain.KindEngine, documentID,
				fmt.Sprintf("status check for engine job %s failed", engineJobID), err)
		}

		switch status.Status {
		case domain.EngineStatusSucceeded:
			logger.Info("Engine job finished",
				slog.String("engine_job_id", engineJobID),
				slog.Int("status_checks", checks),
			)
			return c.collect(ctx, logger, documentID, engineJobID, status)

		case domain.EngineStatusFailed:
			reason := status.StatusMessage
			if reason == "" {
				reason = "no reason given"
			}
			return nil, domain.NewError(domain.KindEngine, documentID,
				fmt.Sprintf("engine job %s failed: %s", engineJobID, reason), nil)
		}

		logger.Debug("Engine job still running",
			slog.String("engine_job_id", engineJobID),
			slog.Int("status_checks", checks),
		)

		select {
		case <-pollCtx.Done():
			return nil, c.pollInterrupted(ctx, documentID, engineJobID)
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) pollInterrupted(ctx context.Context, documentID, engineJobID string) error {
	if ctx.Err() != nil {
		return domain.NewError(domain.KindCoordination, documentID,
			fmt.Sprintf("polling engine job %s canceled", engineJobID), ctx.Err())
	}
	return domain.NewError(domain.KindPollTimeout, documentID,
		fmt.Sprintf("engine job %s did not finish within %s", engineJobID, c.pollTimeout), nil)
}

// collect follows the continuation chain and normalizes the aggregated output
func (c *Coordinator) collect(ctx context.Context, logger *slog.Logger, documentID, engineJobID string, status *domain.StatusPage) (*domain.Outcome, error) {
	blocks, chunks, err := c.aggregate(ctx, engineJobID, status.Page)
	if err != nil {
		return nil, domain.NewError(domain.KindEngine, documentID, "failed to collect engine output", err)
	}

	logger.Info("Engine output aggregated",
		slog.String("engine_job_id", engineJobID),
		slog.Int("chunks", chunks),
		slog.Int("blocks", len(blocks)),
	)

	return &domain.Outcome{
		Result:    normalize.Normalize(blocks),
		PageCount: status.PageCount,
	}, nil
}

// aggregate appends every chunk of the continuation chain, in chain order
func (c *Coordinator) aggregate(ctx context.Context, engineJobID string, first domain.ResultPage) ([]domain.Block, int, error) {
	blocks := append([]domain.Block{}, first.Blocks...)
	chunks := 1
	seen := make(map[string]bool)

	for token := first.NextToken; token != ""; {
		if seen[token] {
			return nil, chunks, fmt.Errorf("continuation token %q repeated", token)
		}
		seen[token] = true

		page, err := c.engine.GetNextPage(ctx, engineJobID, token)
		if err != nil {
			return nil, chunks, err
		}
		blocks = append(blocks, page.Blocks...)
		chunks++
		token = page.NextToken
	}

	return blocks, chunks, nil
}
