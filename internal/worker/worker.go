package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	queuePkg "github.com/jwebster45206/quest-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second

	// MaxAttempts bounds how often a request is re-queued while its session is busy
	MaxAttempts = 20
)

// Worker processes turn requests from the queue
type Worker struct {
	id          string
	queue       *queue.TurnQueue
	runner      *engine.Runner
	broadcaster *events.Broadcaster
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(turnQueue *queue.TurnQueue, runner *engine.Runner, broadcaster *events.Broadcaster, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = NewID()
	}

	return &Worker{
		id:          workerID,
		queue:       turnQueue,
		runner:      runner,
		broadcaster: broadcaster,
		log:         log.With("worker_id", workerID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// NewID returns a random worker id
func NewID() string {
	return fmt.Sprintf("worker-%s", uuid.New().String()[:8])
}

func (w *Worker) ID() string { return w.id }

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				w.log.Error("Error processing request", "error", err)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// timeout, checked again for shutdown
		return nil
	}
	return w.Process(w.ctx, req)
}

// Process runs one request. A busy session sends the request to the back of the queue.
func (w *Worker) Process(ctx context.Context, req *queuePkg.Request) error {
	log := w.log.With("request_id", req.RequestID, "session_id", req.SessionID.String())
	log.Info("Processing request", "attempts", req.Attempts)

	if err := w.broadcaster.PublishTurnProcessing(ctx, req.SessionID, req.RequestID, req.Attempts); err != nil {
		// Don't fail the request just because event publishing failed
		log.Error("Failed to publish processing event", "error", err)
	}

	start := time.Now()
	res, err := w.runner.PlayTurn(ctx, req.SessionID, req.ActionID, req.QuestID)
	switch {
	case engerr.IsBusy(err) && req.Attempts < MaxAttempts:
		log.Info("Session busy, re-queueing request")
		metrics.Requeued()
		if err := w.queue.Requeue(ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil

	case err != nil:
		log.Error("Turn failed", "error", err, "code", engerr.GetCode(err))
		if pubErr := w.broadcaster.PublishTurnFailed(ctx, req.SessionID, req.RequestID, err.Error()); pubErr != nil {
			log.Error("Failed to publish failure event", "error", pubErr)
		}
		return nil

	case res.Rejected():
		if pubErr := w.broadcaster.PublishTurnRejected(ctx, req.SessionID, req.RequestID, res.Rejection); pubErr != nil {
			log.Error("Failed to publish rejection event", "error", pubErr)
		}
		return nil
	}

	log.Info("Turn request processed",
		"turn", res.Turn,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err := w.broadcaster.PublishTurnCompleted(ctx, req.SessionID, req.RequestID, res); err != nil {
		log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}
