package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
)

const sessionIndexKey = "sessions"

func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

func eventsKey(id uuid.UUID) string { return "session:" + id.String() + ":events" }

// RedisStorage implements the Storage interface using Redis for sessions
// and the audit log, and the filesystem for the catalog
type RedisStorage struct {
	client      *redis.Client
	logger      *slog.Logger
	catalogPath string
	sessionTTL  time.Duration
	clock       Clock
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

type Option func(*RedisStorage)

func WithClock(c Clock) Option {
	return func(r *RedisStorage) { r.clock = c }
}

// WithSessionTTL expires idle sessions. Zero keeps them until deleted.
func WithSessionTTL(ttl time.Duration) Option {
	return func(r *RedisStorage) { r.sessionTTL = ttl }
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(client *redis.Client, catalogPath string, logger *slog.Logger, opts ...Option) *RedisStorage {
	if catalogPath == "" {
		catalogPath = "./data/catalog.json"
	}
	r := &RedisStorage{
		client:      client,
		logger:      logger,
		catalogPath: catalogPath,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client exposes the underlying connection for services that share it
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Session operations (Redis-backed)

func (r *RedisStorage) SaveSession(ctx context.Context, s *state.Session) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	s.UpdatedAt = r.clock.Now()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, sessionKey(s.ID), string(data), r.sessionTTL)
	pipe.SAdd(ctx, sessionIndexKey, s.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save session", "session_id", s.ID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s state.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	if s.Character != nil {
		s.Character.Normalize()
	}
	return &s, nil
}

// DeleteSession ends a session. Its audit log is kept.
func (r *RedisStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, sessionIndexKey, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete session", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions loads every indexed session in parallel. Index entries whose
// session has expired are pruned.
func (r *RedisStorage) ListSessions(ctx context.Context) ([]*state.Session, error) {
	members, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*state.Session, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		g.Go(func() error {
			id, err := uuid.Parse(member)
			if err != nil {
				r.logger.Warn("Skipping malformed session index entry", "member", member)
				return nil
			}
			s, err := r.LoadSession(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to get session %s: %w", id, err)
			}
			sessions[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var stale []any
	out := make([]*state.Session, 0, len(sessions))
	for i, s := range sessions {
		if s == nil {
			stale = append(stale, members[i])
			continue
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, sessionIndexKey, stale...).Err(); err != nil {
			r.logger.Warn("Failed to prune session index", "error", err)
		}
	}

	slices.SortFunc(out, func(a, b *state.Session) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

// Audit log operations. The list is only ever appended to.

func (r *RedisStorage) AppendEvents(ctx context.Context, id uuid.UUID, events []quest.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]any, len(events))
	for i, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
		}
		values[i] = string(data)
	}
	if err := r.client.RPush(ctx, eventsKey(id), values...).Err(); err != nil {
		r.logger.Error("Failed to append events", "session_id", id, "count", len(events), "error", err)
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListEvents(ctx context.Context, id uuid.UUID) ([]quest.GameEvent, error) {
	raw, err := r.client.LRange(ctx, eventsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]quest.GameEvent, 0, len(raw))
	for _, item := range raw {
		var ev quest.GameEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Catalog operations (filesystem-backed)

func (r *RedisStorage) LoadCatalog(ctx context.Context) (*quest.Catalog, error) {
	cat, err := quest.LoadCatalog(r.catalogPath)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Catalog loaded", "path", r.catalogPath, "quests", len(cat.Quests()))
	return cat, nil
}
