package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/queue"
)

func setupTestQueue(t *testing.T) (*TurnQueue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewTurnQueue(rdb, logger), mr
}

func TestTurnQueue_FIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	session := uuid.New()

	first := queue.NewRequest(session, "", "errand")
	second := queue.NewRequest(session, "report_back", "")
	third := queue.NewRequest(uuid.New(), "rest", "")

	for _, req := range []*queue.Request{first, second, third} {
		if err := q.Enqueue(ctx, req); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 3 {
		t.Errorf("Expected depth 3, got %d", depth)
	}

	for i, want := range []*queue.Request{first, second, third} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue %d: %v", i, err)
		}
		if got == nil || got.RequestID != want.RequestID {
			t.Fatalf("Dequeue %d: expected %s, got %+v", i, want.RequestID, got)
		}
	}

	empty, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue on empty queue: %v", err)
	}
	if empty != nil {
		t.Errorf("Expected nil from empty queue, got %+v", empty)
	}
}

func TestTurnQueue_RejectsInvalid(t *testing.T) {
	q, mr := setupTestQueue(t)

	err := q.Enqueue(context.Background(), queue.NewRequest(uuid.New(), "rest", "errand"))
	if err == nil {
		t.Fatal("Expected error for request naming both an action and a quest")
	}
	if mr.Exists(RequestsKey) {
		t.Error("Invalid request should not reach the queue")
	}
}

func TestTurnQueue_Requeue(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	busy := queue.NewRequest(uuid.New(), "rest", "")
	other := queue.NewRequest(uuid.New(), "explore", "")
	if err := q.Enqueue(ctx, busy); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, _ := q.Dequeue(ctx)
	if err := q.Requeue(ctx, got); err != nil {
		t.Fatalf("Failed to requeue: %v", err)
	}

	next, _ := q.Dequeue(ctx)
	if next.RequestID != other.RequestID {
		t.Errorf("Expected %s to move ahead of the requeued request, got %s", other.RequestID, next.RequestID)
	}
	last, _ := q.Dequeue(ctx)
	if last.RequestID != busy.RequestID || last.Attempts != 1 {
		t.Errorf("Expected requeued request with 1 attempt, got %+v", last)
	}
}

func TestTurnQueue_BlockingDequeue(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	req := queue.NewRequest(uuid.New(), "rest", "")
	if err := q.Enqueue(ctx, req); err != nil {
		t.Fatal(err)
	}

	got, err := q.BlockingDequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("BlockingDequeue: %v", err)
	}
	if got == nil || got.RequestID != req.RequestID {
		t.Fatalf("Expected %s, got %+v", req.RequestID, got)
	}
}

func TestTurnQueue_BlockingDequeueTimeout(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.BlockingDequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Expected no error on timeout, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil on timeout, got %+v", got)
	}
}

func TestTurnQueue_CorruptEntry(t *testing.T) {
	q, mr := setupTestQueue(t)
	if _, err := mr.Push(RequestsKey, "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := q.Dequeue(context.Background()); err == nil {
		t.Error("Expected parse error for corrupt entry")
	}
}
