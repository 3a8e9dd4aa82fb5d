package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go/v4"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
	"github.com/cuongbtq/docanalysis/internal/worker/progress"
)

var (
	// errRebranch tells the claim loop to re-read the record and branch again
	errRebranch = errors.New("job record changed state")

	errEngineJobPending = errors.New("engine job id not recorded yet")
)

// attach follows another worker's in-flight job as an observer.
// It never writes to the record.
func (c *Coordinator) attach(ctx context.Context, logger *slog.Logger, rec *domain.JobRecord) (*domain.Outcome, error) {
	engineJobID := rec.EngineJobID
	if engineJobID == "" {
		logger.Info("Waiting for owner to submit engine job",
			slog.String("current_owner", rec.Owner),
			slog.Duration("interval", c.claimWaitInterval),
			slog.Int("attempts", c.claimWaitAttempts),
		)

		var err error
		engineJobID, err = c.waitForEngineJob(ctx, rec.DocumentID)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Attached to in-flight engine job",
		slog.String("engine_job_id", engineJobID),
		slog.String("current_owner", rec.Owner),
	)
	c.report(ctx, rec.DocumentID, progress.StageAttached, engineJobID)

	return c.poll(ctx, logger, rec.DocumentID, engineJobID)
}

// waitForEngineJob re-reads the record at a fixed interval until the owner records
// an engine job id. A record that turns terminal in the meantime is handed back
// to the claim loop.
func (c *Coordinator) waitForEngineJob(ctx context.Context, documentID string) (string, error) {
	var engineJobID string

	err := retry.Do(
		func() error {
			rec, err := c.store.Get(ctx, documentID)
			if err != nil {
				if errors.Is(err, domain.ErrJobNotFound) {
					return retry.Unrecoverable(errRebranch)
				}
				return err
			}

			switch rec.Status {
			case domain.JobStatusSucceeded, domain.JobStatusFailed:
				return retry.Unrecoverable(errRebranch)
			}

			if rec.EngineJobID == "" {
				return errEngineJobPending
			}
			engineJobID = rec.EngineJobID
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.claimWaitAttempts)),
		retry.Delay(c.claimWaitInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return engineJobID, nil
	}

	if errors.Is(err, errRebranch) {
		return "", errRebranch
	}
	if ctx.Err() != nil {
		return "", domain.NewError(domain.KindCoordination, documentID, "canceled while waiting for engine job id", ctx.Err())
	}
	return "", domain.NewError(domain.KindClaimStalled, documentID,
		fmt.Sprintf("claim stalled: no engine job id after %d checks", c.claimWaitAttempts), err)
}
