package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/state"
)

// Storage defines a unified interface for all storage operations
// This interface combines session persistence (Redis) with catalog loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations (Redis-backed)
	// LoadSession returns nil, nil when the session does not exist
	SaveSession(ctx context.Context, s *state.Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ListSessions(ctx context.Context) ([]*state.Session, error)

	// Audit log operations (Redis-backed, append-only)
	AppendEvents(ctx context.Context, id uuid.UUID, events []quest.GameEvent) error
	ListEvents(ctx context.Context, id uuid.UUID) ([]quest.GameEvent, error)

	// Catalog operations (filesystem-backed)
	LoadCatalog(ctx context.Context) (*quest.Catalog, error)
}
