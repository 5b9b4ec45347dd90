package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/queue"
)

// RequestsKey is the global list turn requests wait on
const RequestsKey = "turn-requests"

// TurnQueue is a FIFO of turn requests shared by every worker
type TurnQueue struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewTurnQueue(rdb *redis.Client, logger *slog.Logger) *TurnQueue {
	return &TurnQueue{rdb: rdb, logger: logger}
}

// Enqueue adds a request to the end of the queue
func (q *TurnQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.rdb.RPush(ctx, RequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}

	q.logger.Debug("Enqueued turn request",
		"request_id", req.RequestID,
		"session_id", req.SessionID.String(),
	)
	return nil
}

// Requeue puts a request back at the end of the queue after a worker found its session busy
func (q *TurnQueue) Requeue(ctx context.Context, req *queue.Request) error {
	req.Attempts++
	return q.Enqueue(ctx, req)
}

// Dequeue removes and returns the next request, or nil if the queue is empty
func (q *TurnQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.rdb.LPop(ctx, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for a request. It returns nil, nil on timeout.
func (q *TurnQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.rdb.BLPop(ctx, timeout, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Depth returns the number of waiting requests
func (q *TurnQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.rdb.LLen(ctx, RequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

func parse(raw string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
