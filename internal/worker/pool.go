package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
		slog.Int("worker_num", workerNum),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case t, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}
			w.handleTask(ctx, workerName, t)
		}
	}
}

// handleTask processes one request and settles its delivery
func (w *Worker) handleTask(ctx context.Context, workerName string, t *task) {
	msg := t.message
	w.logger.Info("Worker received analysis request",
		slog.String("worker_name", workerName),
		slog.String("document_id", msg.DocumentID),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
	)

	err := w.processJob(ctx, msg)
	if err == nil {
		if ackErr := t.delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("document_id", msg.DocumentID),
				slog.String("error", ackErr.Error()),
			)
			return
		}
		w.logger.Info("Analysis request completed",
			slog.String("worker_name", workerName),
			slog.String("document_id", msg.DocumentID),
		)
		return
	}

	requeue := shouldRequeue(err) && !t.delivery.Redelivered
	if shouldRequeue(err) && !requeue {
		w.logger.Warn("Transient failure on a redelivered request, dead-lettering",
			slog.String("worker_name", workerName),
			slog.String("document_id", msg.DocumentID),
			slog.String("kind", string(domain.KindOf(err))),
		)
	}
	if nackErr := t.delivery.Nack(false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("document_id", msg.DocumentID),
			slog.String("error", nackErr.Error()),
		)
		return
	}
	w.logger.Info("Message NACKed",
		slog.String("worker_name", workerName),
		slog.String("document_id", msg.DocumentID),
		slog.String("kind", string(domain.KindOf(err))),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeue reports whether a failed request is worth redelivering.
// Stalled claims and store trouble are transient; every other failure is
// terminal for this delivery and is retried only by a new request.
// handleTask requeues a delivery at most once: a crashed owner leaves its
// record CLAIMED, so a second stall goes to the dead-letter queue.
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrInvalidMessage) {
		return false
	}

	switch domain.KindOf(err) {
	case domain.KindClaimStalled, domain.KindCoordination:
		return true
	default:
		return false
	}
}
