package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// processJob runs one analysis request through the coordinator under the job timeout
func (w *Worker) processJob(ctx context.Context, msg *domain.AnalysisMessage) error {
	logger := w.logger.With(
		slog.String("document_id", msg.DocumentID),
		slog.String("worker_id", w.workerID),
	)
	logger.Info("Processing analysis request",
		slog.String("source_location", msg.SourceLocation),
	)

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := w.processor.Process(jobCtx, msg.DocumentID, msg.SourceLocation)
	if err != nil {
		logger.Error("Analysis request failed",
			slog.String("kind", string(domain.KindOf(err))),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return err
	}

	logger.Info("Analysis request succeeded",
		slog.Int("page_count", outcome.PageCount),
		slog.Int("tables", len(outcome.Result.Tables)),
		slog.Int("lines", len(outcome.Result.Lines)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
