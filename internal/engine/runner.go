// Package engine runs turns against stored sessions: it serializes turns per
// session, loads the snapshot, hands it to the orchestrator and persists the
// outcome together with its audit events.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

// Locker refuses a key that is already held instead of waiting for it.
// turn.Guard and lock.RedisLocker both satisfy it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Runner struct {
	store  storage.Storage
	orch   *turn.Orchestrator
	locker Locker
	logger *slog.Logger
}

func NewRunner(store storage.Storage, orch *turn.Orchestrator, locker Locker, logger *slog.Logger) *Runner {
	return &Runner{store: store, orch: orch, locker: locker, logger: logger}
}

func (r *Runner) Catalog() *quest.Catalog {
	return r.orch.Catalog()
}

// StartSession stores a new session for c and returns its opening result
func (r *Runner) StartSession(ctx context.Context, c *quest.Character) (*state.Session, *turn.Result, error) {
	res, err := r.orch.Opening(c, 0)
	if err != nil {
		return nil, nil, err
	}

	s := state.NewSession(res.Character)
	if err := r.store.SaveSession(ctx, s); err != nil {
		return nil, nil, engerr.WrapWithCode(err, engerr.CodeInternal, "failed to save session")
	}
	logger.WithSession(r.logger, s.ID.String(), s.Turn).Info("Session started", "character_id", c.ID)
	return s, res, nil
}

// Session loads a session or returns a not_found error
func (r *Runner) Session(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	s, err := r.store.LoadSession(ctx, id)
	if err != nil {
		return nil, engerr.WrapWithCode(err, engerr.CodeInternal, "failed to load session")
	}
	if s == nil || s.Character == nil {
		return nil, engerr.NotFoundf("session %s not found", id)
	}
	return s, nil
}

// View returns a session with its current offers, choices and sheet
func (r *Runner) View(ctx context.Context, id uuid.UUID) (*state.Session, *turn.Result, error) {
	s, err := r.Session(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.orch.View(s.Character, s.Turn)
	if err != nil {
		r.logInvariant(s, err)
		return nil, nil, err
	}
	return s, res, nil
}

// PlayTurn runs one turn for a session. Rejected turns are returned without
// being saved. A session with a turn already in progress gets a busy error.
func (r *Runner) PlayTurn(ctx context.Context, id uuid.UUID, actionID, questID string) (*turn.Result, error) {
	start := time.Now()
	res, err := r.playTurn(ctx, id, actionID, questID)
	metrics.ObserveTurn(outcome(res, err), time.Since(start))
	return res, err
}

func (r *Runner) playTurn(ctx context.Context, id uuid.UUID, actionID, questID string) (*turn.Result, error) {
	release, err := r.locker.Acquire(ctx, state.LockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := r.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logger.WithSession(r.logger, id.String(), s.Turn)

	res, err := r.orch.Process(turn.Request{
		Character: s.Character,
		ActionID:  actionID,
		QuestID:   questID,
		Turn:      s.Turn,
	})
	if err != nil {
		r.logInvariant(s, err)
		return nil, err
	}
	if res.Rejected() {
		log.Info("Turn rejected", "code", res.Rejection.Code, "message", res.Rejection.Message)
		return res, nil
	}

	s.Character = res.Character
	s.Turn = res.Turn
	if err := r.store.SaveSession(ctx, s); err != nil {
		return nil, engerr.WrapWithCode(err, engerr.CodeInternal, "failed to save session")
	}
	// the session is already saved, so a failed append is logged rather than undoing the turn
	if err := r.store.AppendEvents(ctx, id, res.Events); err != nil {
		logger.WithError(log, err).Error("Failed to append audit events", "count", len(res.Events))
	}

	completed := 0
	for _, ev := range res.Events {
		if ev.Kind == quest.EventQuestCompleted {
			completed++
		}
	}
	metrics.QuestsCompleted(completed)
	metrics.ConsequencesFired(len(res.Fired))

	log.Info("Turn processed",
		"new_turn", res.Turn,
		"events", len(res.Events),
		"fired", len(res.Fired),
	)
	return res, nil
}

// EndSession deletes a session and with it every pending consequence. The
// audit log is kept.
func (r *Runner) EndSession(ctx context.Context, id uuid.UUID) error {
	release, err := r.locker.Acquire(ctx, state.LockKey(id))
	if err != nil {
		return err
	}
	defer release()

	if _, err := r.Session(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeleteSession(ctx, id); err != nil {
		return engerr.WrapWithCode(err, engerr.CodeInternal, "failed to delete session")
	}
	r.logger.Info("Session ended", "session_id", id.String())
	return nil
}

// Log returns the session's audit events in the order they were recorded
func (r *Runner) Log(ctx context.Context, id uuid.UUID) ([]quest.GameEvent, error) {
	events, err := r.store.ListEvents(ctx, id)
	if err != nil {
		return nil, engerr.WrapWithCode(err, engerr.CodeInternal, "failed to list events")
	}
	return events, nil
}

func (r *Runner) Sessions(ctx context.Context) ([]*state.Session, error) {
	sessions, err := r.store.ListSessions(ctx)
	if err != nil {
		return nil, engerr.WrapWithCode(err, engerr.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

// invariant violations are engine bugs and always logged at error level
func (r *Runner) logInvariant(s *state.Session, err error) {
	if !engerr.IsInvariant(err) {
		return
	}
	logger.WithError(logger.WithSession(r.logger, s.ID.String(), s.Turn), err).
		Error("Invariant violation", "character_id", s.CharacterID())
}

func outcome(res *turn.Result, err error) string {
	switch {
	case err == nil && res != nil && res.Rejected():
		return metrics.OutcomeRejected
	case err == nil:
		return metrics.OutcomeOK
	case engerr.IsBusy(err):
		return metrics.OutcomeBusy
	case engerr.IsInvariant(err):
		return metrics.OutcomeInvariant
	case engerr.Is(err, engerr.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
