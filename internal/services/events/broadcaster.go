package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTurnQueued     EventType = "turn.queued"
	EventTypeTurnProcessing EventType = "turn.processing"
	EventTypeTurnCompleted  EventType = "turn.completed"
	EventTypeTurnRejected   EventType = "turn.rejected"
	EventTypeTurnFailed     EventType = "turn.failed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the pub/sub channel for one session's events
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

func (b *Broadcaster) PublishTurnQueued(ctx context.Context, sessionID uuid.UUID, requestID string) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeTurnQueued,
		RequestID: requestID,
		Data:      map[string]any{"status": "queued"},
	})
}

func (b *Broadcaster) PublishTurnProcessing(ctx context.Context, sessionID uuid.UUID, requestID string, attempts int) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeTurnProcessing,
		RequestID: requestID,
		Data:      map[string]any{"status": "processing", "attempts": attempts},
	})
}

// PublishTurnCompleted carries the full turn result so clients need not poll
func (b *Broadcaster) PublishTurnCompleted(ctx context.Context, sessionID uuid.UUID, requestID string, result any) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeTurnCompleted,
		RequestID: requestID,
		Data:      map[string]any{"status": "completed", "result": result},
	})
}

func (b *Broadcaster) PublishTurnRejected(ctx context.Context, sessionID uuid.UUID, requestID string, rejection any) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeTurnRejected,
		RequestID: requestID,
		Data:      map[string]any{"status": "rejected", "rejection": rejection},
	})
}

func (b *Broadcaster) PublishTurnFailed(ctx context.Context, sessionID uuid.UUID, requestID string, errorMsg string) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeTurnFailed,
		RequestID: requestID,
		Data:      map[string]any{"status": "failed", "error": errorMsg},
	})
}

// Subscribe opens a subscription to a session's channel. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := Channel(sessionID)
	event.SessionID = sessionID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}
