package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/quest-engine/internal/config"
	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/middleware"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/lock"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/internal/storage"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Quest Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"catalog", cfg.CatalogPath)

	redisClient, err := storage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}

	store := storage.NewRedisStorage(redisClient, cfg.CatalogPath, log, storage.WithSessionTTL(cfg.SessionTTL))
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	catalog, err := store.LoadCatalog(storageCtx)
	if err != nil {
		log.Error("Failed to load quest catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	log.Info("Quest catalog loaded", "quests", len(catalog.Quests()))

	var opts []turn.Option
	if cfg.OfferSize > 0 {
		opts = append(opts, turn.WithOfferSize(cfg.OfferSize))
	}
	orchestrator := turn.New(catalog, opts...)
	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL, "api", log)
	runner := engine.NewRunner(store, orchestrator, locker, log)

	mux := handlers.NewRouter(handlers.Deps{
		Storage:     store,
		Runner:      runner,
		Queue:       queue.NewTurnQueue(redisClient, log),
		Broadcaster: events.NewBroadcaster(redisClient, log),
		Logger:      log,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the SSE endpoint holds connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
