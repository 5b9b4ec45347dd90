package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

const (
	// PollInterval is how often to check the session for updates
	PollInterval = 250 * time.Millisecond
	// TurnTimeout is max time to wait for a worker to play a queued turn
	TurnTimeout = 30 * time.Second
)

// SessionView is a session as GET /v1/sessions/{id} returns it
type SessionView struct {
	ID     uuid.UUID `json:"id"`
	Turn   int       `json:"turn"`
	Result *TurnView `json:"result"`
}

// PostTurnAsync queues a turn and returns the request_id
func PostTurnAsync(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, body handlers.TurnRequest) (string, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal turn request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/turns?async=true", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send turn request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("turn endpoint returned %d (expected 202): %s", resp.StatusCode, string(body))
	}

	var queued handlers.QueuedTurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("failed to parse turn response: %w", err)
	}
	return queued.RequestID, nil
}

// GetSession retrieves the session and its current view
func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*SessionView, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send session request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var s SessionView
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

// GetLog retrieves the session's audit log
func GetLog(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) ([]quest.GameEvent, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s/log", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create log request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send log request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("log endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var log handlers.LogResponse
	if err := json.NewDecoder(resp.Body).Decode(&log); err != nil {
		return nil, fmt.Errorf("failed to decode log: %w", err)
	}
	return log.Events, nil
}

// PollForTurn polls the session until its turn counter passes afterTurn
func PollForTurn(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, afterTurn int) (*SessionView, error) {
	timeout := time.After(TurnTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for turn %d (waited %v)", afterTurn+1, TurnTimeout)
		case <-ticker.C:
			s, err := GetSession(ctx, client, baseURL, sessionID)
			if err != nil {
				// keep polling: the API may be briefly unavailable
				continue
			}
			if s.Turn > afterTurn {
				return s, nil
			}
		}
	}
}

// FiredOnTurn lists the consequence event ids the log records for turn
func FiredOnTurn(events []quest.GameEvent, turn int) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == quest.EventConsequenceFired && ev.Turn == turn {
			out = append(out, ev.EventID)
		}
	}
	return out
}
