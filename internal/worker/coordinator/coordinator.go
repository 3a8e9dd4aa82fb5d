// Package coordinator guarantees at most one engine analysis job per document
// across workers that share nothing but the job record store.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
	"github.com/cuongbtq/docanalysis/internal/worker/progress"
)

// Store is the job record store contract. Implementations must make each
// method a single atomic operation per document.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec *domain.JobRecord) (bool, error)
	Get(ctx context.Context, documentID string) (*domain.JobRecord, error)
	ConditionalUpdate(ctx context.Context, documentID string, expected domain.JobStatus, patch domain.Patch) (bool, error)
	Update(ctx context.Context, documentID string, patch domain.Patch) error
}

// Engine is the asynchronous analysis engine
type Engine interface {
	Submit(ctx context.Context, staged string, opts domain.SubmitOptions) (string, error)
	GetStatus(ctx context.Context, engineJobID string) (*domain.StatusPage, error)
	GetNextPage(ctx context.Context, engineJobID, token string) (*domain.ResultPage, error)
}

// Stager makes source documents readable by the engine
type Stager interface {
	Stage(ctx context.Context, source string) (string, error)
	Unstage(ctx context.Context, staged string) error
}

// Tracker receives human-facing progress reports. Optional.
type Tracker interface {
	Report(ctx context.Context, documentID, stage, message string) error
}

// Default tunables
const (
	DefaultPollInterval      = 5 * time.Second
	DefaultPollTimeout       = 20 * time.Minute
	DefaultClaimWaitInterval = 3 * time.Second
	DefaultClaimWaitAttempts = 10
	DefaultMaxClaimRounds    = 5
	DefaultCleanupTimeout    = 30 * time.Second
)

// Config holds coordinator dependencies and tunables
type Config struct {
	Logger   *slog.Logger
	Store    Store
	Engine   Engine
	Stager   Stager
	Tracker  Tracker
	WorkerID string

	PollInterval time.Duration
	PollTimeout  time.Duration

	// ClaimWaitInterval and ClaimWaitAttempts bound how long an attaching
	// worker waits for the owner to record an engine job id. Expiry surfaces
	// a crashed owner as ClaimStalled.
	ClaimWaitInterval time.Duration
	ClaimWaitAttempts int

	// MaxClaimRounds bounds claim attempts lost to concurrent workers
	MaxClaimRounds int

	FeatureTypes   []string
	CleanupTimeout time.Duration
}

// Coordinator runs the claim / submit / poll protocol for documents
type Coordinator struct {
	logger   *slog.Logger
	store    Store
	engine   Engine
	stager   Stager
	tracker  Tracker
	workerID string

	pollInterval      time.Duration
	pollTimeout       time.Duration
	claimWaitInterval time.Duration
	claimWaitAttempts int
	maxClaimRounds    int
	featureTypes      []string
	cleanupTimeout    time.Duration
}

// NewCoordinator creates a new coordinator, filling unset tunables with defaults
func NewCoordinator(cfg *Config) *Coordinator {
	c := &Coordinator{
		logger:            cfg.Logger,
		store:             cfg.Store,
		engine:            cfg.Engine,
		stager:            cfg.Stager,
		tracker:           cfg.Tracker,
		workerID:          cfg.WorkerID,
		pollInterval:      orDefault(cfg.PollInterval, DefaultPollInterval),
		pollTimeout:       orDefault(cfg.PollTimeout, DefaultPollTimeout),
		claimWaitInterval: orDefault(cfg.ClaimWaitInterval, DefaultClaimWaitInterval),
		claimWaitAttempts: orDefault(cfg.ClaimWaitAttempts, DefaultClaimWaitAttempts),
		maxClaimRounds:    orDefault(cfg.MaxClaimRounds, DefaultMaxClaimRounds),
		featureTypes:      cfg.FeatureTypes,
		cleanupTimeout:    orDefault(cfg.CleanupTimeout, DefaultCleanupTimeout),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.workerID == "" {
		c.workerID = "worker"
	}
	if len(c.featureTypes) == 0 {
		c.featureTypes = []string{domain.FeatureTables}
	}
	return c
}

// Process returns the normalized analysis of a document, submitting a new engine
// job only when no other worker has one in flight or completed. Concurrent calls
// for the same document are safe across processes.
func (c *Coordinator) Process(ctx context.Context, documentID, source string) (*domain.Outcome, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidMessage)
	}

	owner := c.newOwnerToken()
	logger := c.logger.With(
		slog.String("document_id", documentID),
		slog.String("owner", owner),
	)

	for round := 1; round <= c.maxClaimRounds; round++ {
		inserted, err := c.store.InsertIfAbsent(ctx, &domain.JobRecord{
			DocumentID: documentID,
			Owner:      owner,
			Status:     domain.JobStatusClaimed,
		})
		if err != nil {
			return nil, domain.NewError(domain.KindCoordination, documentID, "failed to claim job record", err)
		}

		if inserted {
			logger.Info("Claimed document for analysis")
			c.report(ctx, documentID, progress.StageClaimed, "")
			return c.runOwned(ctx, logger, documentID, source, owner)
		}

		rec, err := c.store.Get(ctx, documentID)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				continue
			}
			return nil, domain.NewError(domain.KindCoordination, documentID, "failed to read job record", err)
		}

		outcome, done, err := c.branch(ctx, logger, rec, source, owner)
		if done {
			return outcome, err
		}

		logger.Warn("Lost claim race, re-reading job record",
			slog.Int("round", round),
			slog.Int("max_rounds", c.maxClaimRounds),
		)
	}

	return nil, domain.NewError(domain.KindCoordination, documentID,
		fmt.Sprintf("claim lost to concurrent workers %d times", c.maxClaimRounds), nil)
}

// branch acts on an existing record. done is false when the caller should re-read and branch again.
func (c *Coordinator) branch(ctx context.Context, logger *slog.Logger, rec *domain.JobRecord, source, owner string) (outcome *domain.Outcome, done bool, err error) {
	switch rec.Status {
	case domain.JobStatusSucceeded:
		logger.Info("Using cached analysis result",
			slog.Int("page_count", rec.PageCount),
		)
		return rec.Outcome(), true, nil

	case domain.JobStatusClaimed, domain.JobStatusInProgress:
		outcome, err := c.attach(ctx, logger, rec)
		if errors.Is(err, errRebranch) {
			return nil, false, nil
		}
		return outcome, true, err

	case domain.JobStatusFailed:
		ok, err := c.store.ConditionalUpdate(ctx, rec.DocumentID, domain.JobStatusFailed, domain.ReclaimPatch(owner))
		if err != nil {
			return nil, true, domain.NewError(domain.KindCoordination, rec.DocumentID, "failed to re-claim job record", err)
		}
		if !ok {
			return nil, false, nil
		}

		logger.Info("Re-claimed document after failed attempt",
			slog.String("previous_owner", rec.Owner),
			slog.String("previous_error", rec.Error),
			slog.Int("attempts", rec.Attempts+1),
		)
		c.report(ctx, rec.DocumentID, progress.StageClaimed, "retrying after failure")
		outcome, err := c.runOwned(ctx, logger, rec.DocumentID, source, owner)
		return outcome, true, err

	default:
		return nil, true, domain.NewError(domain.KindCoordination, rec.DocumentID,
			fmt.Sprintf("unknown job status %q", rec.Status), nil)
	}
}

// runOwned stages, submits and polls as the record's owner, recording every transition
func (c *Coordinator) runOwned(ctx context.Context, logger *slog.Logger, documentID, source, owner string) (*domain.Outcome, error) {
	c.report(ctx, documentID, progress.StageStaging, "")
	staged, err := c.stager.Stage(ctx, source)
	if err != nil {
		return nil, c.fail(ctx, logger, documentID,
			domain.NewError(domain.KindStaging, documentID, "failed to stage source", err))
	}
	defer c.unstage(ctx, logger, staged)

	engineJobID, err := c.engine.Submit(ctx, staged, domain.SubmitOptions{FeatureTypes: c.featureTypes})
	if err != nil {
		return nil, c.fail(ctx, logger, documentID,
			domain.NewError(domain.KindSubmission, documentID, "engine rejected submission", err))
	}

	if err := c.store.Update(ctx, documentID, domain.StartedPatch(engineJobID)); err != nil {
		return nil, c.fail(ctx, logger, documentID,
			domain.NewError(domain.KindCoordination, documentID, "failed to record engine job id", err))
	}

	logger.Info("Engine job submitted",
		slog.String("engine_job_id", engineJobID),
	)
	c.report(ctx, documentID, progress.StageSubmitted, engineJobID)

	outcome, err := c.poll(ctx, logger, documentID, engineJobID)
	if err != nil {
		return nil, c.fail(ctx, logger, documentID, err)
	}

	if err := c.store.Update(ctx, documentID, domain.SucceededPatch(outcome)); err != nil {
		return nil, c.fail(ctx, logger, documentID,
			domain.NewError(domain.KindCoordination, documentID, "failed to record analysis result", err))
	}

	logger.Info("Document analysis succeeded",
		slog.String("engine_job_id", engineJobID),
		slog.Int("page_count", outcome.PageCount),
		slog.Int("tables", len(outcome.Result.Tables)),
		slog.Int("lines", len(outcome.Result.Lines)),
	)
	c.report(ctx, documentID, progress.StageSucceeded, "")
	return outcome, nil
}

// fail marks the owned record FAILED and returns cause. The write outlives ctx
// cancellation so the record never stays IN_PROGRESS after this worker gives up.
func (c *Coordinator) fail(ctx context.Context, logger *slog.Logger, documentID string, cause error) error {
	logger.Error("Document analysis failed",
		slog.String("kind", string(domain.KindOf(cause))),
		slog.String("error", cause.Error()),
	)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cleanupTimeout)
	defer cancel()

	if err := c.store.Update(writeCtx, documentID, domain.FailedPatch(cause.Error())); err != nil {
		logger.Error("Failed to update job record to FAILED",
			slog.String("error", err.Error()),
		)
	}
	c.report(writeCtx, documentID, progress.StageFailed, cause.Error())
	return cause
}

func (c *Coordinator) unstage(ctx context.Context, logger *slog.Logger, staged string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cleanupTimeout)
	defer cancel()

	if err := c.stager.Unstage(cleanupCtx, staged); err != nil {
		logger.Warn("Failed to remove staged document",
			slog.String("staged", staged),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Coordinator) report(ctx context.Context, documentID, stage, message string) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.Report(ctx, documentID, stage, message); err != nil {
		c.logger.Warn("Failed to report progress",
			slog.String("document_id", documentID),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Coordinator) newOwnerToken() string {
	return c.workerID + "-" + uuid.NewString()[:8]
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
