package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/queue"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

// TurnEnqueuer accepts turns for asynchronous processing by a worker
type TurnEnqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// QueuedNotifier is told about turns as they are queued
type QueuedNotifier interface {
	PublishTurnQueued(ctx context.Context, sessionID uuid.UUID, requestID string) error
}

// CreateSessionRequest describes the character a session starts with.
// Everything except character_id is optional.
type CreateSessionRequest struct {
	CharacterID string         `json:"character_id"`
	Name        string         `json:"name,omitempty"`
	Level       int            `json:"level,omitempty"`
	Experience  int            `json:"experience,omitempty"`
	Karma       int            `json:"karma,omitempty"`
	Reputation  map[string]int `json:"reputation,omitempty"`
}

type TurnRequest struct {
	ActionID string `json:"action_id,omitempty"`
	QuestID  string `json:"quest_id,omitempty"`
}

type SessionResponse struct {
	ID        uuid.UUID    `json:"id"`
	Turn      int          `json:"turn"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Result    *turn.Result `json:"result,omitempty"`
}

type SessionSummary struct {
	ID          uuid.UUID `json:"id"`
	CharacterID string    `json:"character_id"`
	Level       int       `json:"level"`
	Turn        int       `json:"turn"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type QueuedTurnResponse struct {
	RequestID string    `json:"request_id"`
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
}

type LogResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Events    []quest.GameEvent `json:"events"`
}

type SessionsHandler struct {
	runner   *engine.Runner
	queue    TurnEnqueuer
	notifier QueuedNotifier
	logger   *slog.Logger
}

// NewSessionsHandler creates the sessions handler. queue and notifier may be
// nil, in which case async turns are refused.
func NewSessionsHandler(runner *engine.Runner, queue TurnEnqueuer, notifier QueuedNotifier, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		runner:   runner,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// ServeHTTP handles session and turn requests
// Routes:
// POST   /v1/sessions                       - Start a session
// GET    /v1/sessions                       - List sessions
// GET    /v1/sessions/{id}                  - Session with current offers and sheet
// DELETE /v1/sessions/{id}                  - End a session
// GET    /v1/sessions/{id}/log              - Audit log
// POST   /v1/sessions/{id}/turns[?async=true] - Play a turn
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			methodNotAllowed(w, h.logger, r, "GET, POST")
		}
		return
	}

	parts := strings.Split(path, "/")
	sessionID, ok := parseSessionID(w, h.logger, parts[0])
	if !ok {
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, sessionID)
		case http.MethodDelete:
			h.handleDelete(w, r, sessionID)
		default:
			methodNotAllowed(w, h.logger, r, "GET, DELETE")
		}
	case len(parts) == 2 && parts[1] == "log":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		h.handleLog(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "turns":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleTurn(w, r, sessionID)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid create session request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if msg := h.validateCreate(req); msg != "" {
		h.logger.Warn("Rejected create session request", "reason", msg)
		writeError(w, h.logger, http.StatusBadRequest, msg)
		return
	}

	c := quest.NewCharacter(strings.TrimSpace(req.CharacterID), req.Name)
	if req.Level > 0 {
		c.Level = req.Level
	}
	c.Experience = req.Experience
	c.Karma = req.Karma
	for faction, v := range req.Reputation {
		c.Reputation[faction] = v
	}

	s, res, err := h.runner.StartSession(r.Context(), c)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, sessionResponse(s, res))
}

// validateCreate checks caller input that the engine would otherwise treat as
// a corrupt character
func (h *SessionsHandler) validateCreate(req CreateSessionRequest) string {
	switch {
	case req.Level < 0:
		return "level must not be negative"
	case req.Experience < 0:
		return "experience must not be negative"
	}
	cat := h.runner.Catalog()
	for _, faction := range slices.Sorted(maps.Keys(req.Reputation)) {
		if !cat.HasFaction(faction) {
			return fmt.Sprintf("unknown faction %q", faction)
		}
	}
	return ""
}

func (h *SessionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.runner.Sessions(r.Context())
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			ID:          s.ID,
			CharacterID: s.CharacterID(),
			Level:       s.Character.Level,
			Turn:        s.Turn,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, SessionListResponse{Sessions: out})
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, res, err := h.runner.View(r.Context(), id)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sessionResponse(s, res))
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.runner.EndSession(r.Context(), id); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleLog(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	events, err := h.runner.Log(r.Context(), id)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, LogResponse{SessionID: id, Events: events})
}

func (h *SessionsHandler) handleTurn(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var body TurnRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.handleAsyncTurn(w, r, id, body)
		return
	}

	res, err := h.runner.PlayTurn(r.Context(), id, body.ActionID, body.QuestID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Rejected() {
		status = StatusForCode(res.Rejection.Code)
	}
	writeJSON(w, h.logger, status, res)
}

func (h *SessionsHandler) handleAsyncTurn(w http.ResponseWriter, r *http.Request, id uuid.UUID, body TurnRequest) {
	if h.queue == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Async turns are not available")
		return
	}

	req := queue.NewRequest(id, body.ActionID, body.QuestID)
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.runner.Session(r.Context(), id); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue turn", "error", err, "session_id", id.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to enqueue turn")
		return
	}
	if h.notifier != nil {
		if err := h.notifier.PublishTurnQueued(r.Context(), id, req.RequestID); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err)
		}
	}

	writeJSON(w, h.logger, http.StatusAccepted, QueuedTurnResponse{
		RequestID: req.RequestID,
		SessionID: id,
		Status:    "queued",
	})
}

func sessionResponse(s *state.Session, res *turn.Result) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Turn:      s.Turn,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Result:    res,
	}
}
