package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/pkg/storage"
)

// Deps are the services the API routes need. Queue and Broadcaster may be nil.
type Deps struct {
	Storage     storage.Storage
	Runner      *engine.Runner
	Queue       TurnEnqueuer
	Broadcaster *events.Broadcaster
	Logger      *slog.Logger
}

// NewRouter registers every API route on a new mux
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/health", NewHealthHandler(d.Storage, d.Logger))
	mux.Handle("/metrics", metrics.Handler())

	questsHandler := NewQuestsHandler(d.Runner.Catalog(), d.Logger)
	mux.Handle("/v1/quests", questsHandler)
	mux.Handle("/v1/quests/", questsHandler)

	var notifier QueuedNotifier
	if d.Broadcaster != nil {
		notifier = d.Broadcaster
		mux.Handle("/v1/events/sessions/", NewEventsHandler(d.Broadcaster, d.Logger))
	}
	sessionsHandler := NewSessionsHandler(d.Runner, d.Queue, notifier, d.Logger)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	return mux
}
