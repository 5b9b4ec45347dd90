package main

import (
	"cmp"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/quest-engine/internal/config"
	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/lock"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/internal/storage"
	"github.com/jwebster45206/quest-engine/internal/worker"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Quest Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	redisClient, err := storage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}

	store := storage.NewRedisStorage(redisClient, cfg.CatalogPath, log, storage.WithSessionTTL(cfg.SessionTTL))
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	catalog, err := store.LoadCatalog(storageCtx)
	if err != nil {
		log.Error("Failed to load quest catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}

	var opts []turn.Option
	if cfg.OfferSize > 0 {
		opts = append(opts, turn.WithOfferSize(cfg.OfferSize))
	}
	orchestrator := turn.New(catalog, opts...)

	workerID := cmp.Or(cfg.WorkerID, worker.NewID())
	// the lock owner is the worker id so a held lock can be traced to its holder
	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL, workerID, log)

	w := worker.New(
		queue.NewTurnQueue(redisClient, log),
		engine.NewRunner(store, orchestrator, locker, log),
		events.NewBroadcaster(redisClient, log),
		log,
		workerID,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// let an in-flight turn finish its save
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
