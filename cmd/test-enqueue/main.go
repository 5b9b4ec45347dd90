package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/internal/storage"
	queuePkg "github.com/jwebster45206/quest-engine/pkg/queue"
)

func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL")
	sessionID := flag.String("session", "", "session ID to play a turn for")
	actionID := flag.String("action", "", "action to take")
	questID := flag.String("quest", "", "quest to start")
	flag.Parse()

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		log.Fatal("A valid -session is required: ", err)
	}

	client, err := storage.NewRedisClient(*redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL: ", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}

	q := queue.NewTurnQueue(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := queuePkg.NewRequest(id, *actionID, *questID)
	if err := q.Enqueue(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request: ", err)
	}
	fmt.Printf("Enqueued turn request %s for session %s\n", req.RequestID, id)

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth: ", err)
	}
	fmt.Printf("Queue depth: %d requests\n", depth)
	fmt.Println("Start the worker to process them: go run ./cmd/worker")
}
