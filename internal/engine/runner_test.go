package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/quest/questtest"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

func newTestRunner(t *testing.T) (*Runner, *storage.MockStorage, *turn.Guard) {
	t.Helper()
	cat := questtest.Catalog()
	store := storage.NewMockStorage(cat)
	guard := turn.NewGuard()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(store, turn.New(cat), guard, logger), store, guard
}

func TestRunner_StartAndPlay(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	s, opening, err := r.StartSession(ctx, quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Turn)
	assert.Contains(t, opening.Narrative, "Welcome, Vel.")

	res, err := r.PlayTurn(ctx, s.ID, "", "errand")
	require.NoError(t, err)
	require.False(t, res.Rejected())

	res, err = r.PlayTurn(ctx, s.ID, "report_back", "")
	require.NoError(t, err)
	require.False(t, res.Rejected())
	assert.Equal(t, 2, res.Turn)

	saved, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Turn)
	assert.True(t, saved.Character.HasCompleted("errand"))
	assert.Nil(t, saved.Character.Active)

	log, err := r.Log(ctx, s.ID)
	require.NoError(t, err)
	var kinds []quest.GameEventKind
	for _, ev := range log {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []quest.GameEventKind{
		quest.EventQuestStarted,
		quest.EventActionApplied,
		quest.EventQuestCompleted,
	}, kinds)
}

func TestRunner_TradeWarConsequenceAcrossSaves(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx := context.Background()

	c := quest.NewCharacter("mira", "Mira")
	c.Level = 5
	s, _, err := r.StartSession(ctx, c)
	require.NoError(t, err)

	_, err = r.PlayTurn(ctx, s.ID, "", "trade_war")
	require.NoError(t, err)
	_, err = r.PlayTurn(ctx, s.ID, "strike_deal", "")
	require.NoError(t, err)

	// completed on turn 1 with offset 5: due on turn 6
	var fired []quest.ScheduledEvent
	for range 4 {
		res, err := r.PlayTurn(ctx, s.ID, "rest", "")
		require.NoError(t, err)
		fired = append(fired, res.Fired...)
		if len(res.Fired) > 0 {
			assert.Equal(t, 6, res.Turn)
			assert.Contains(t, res.Narrative, "CONSEQUENCE: Agents of the rival cartel")
		}
	}
	require.Len(t, fired, 1)
	assert.Equal(t, "rival_ambush", fired[0].EventID)

	// fires once only
	res, err := r.PlayTurn(ctx, s.ID, "rest", "")
	require.NoError(t, err)
	assert.Empty(t, res.Fired)

	_, view, err := r.View(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, view.Turn)
}

func TestRunner_RejectionIsNotSaved(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	s, _, err := r.StartSession(ctx, quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)

	res, err := r.PlayTurn(ctx, s.ID, "", "shadow_throne")
	require.NoError(t, err)
	require.True(t, res.Rejected())
	assert.Equal(t, engerr.CodeValidation, res.Rejection.Code)

	saved, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Turn)

	log, err := r.Log(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestRunner_Busy(t *testing.T) {
	r, _, guard := newTestRunner(t)
	ctx := context.Background()

	s, _, err := r.StartSession(ctx, quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)

	release, err := guard.Acquire(ctx, state.LockKey(s.ID))
	require.NoError(t, err)

	_, err = r.PlayTurn(ctx, s.ID, "rest", "")
	require.Error(t, err)
	assert.True(t, engerr.IsBusy(err))

	assert.True(t, engerr.IsBusy(r.EndSession(ctx, s.ID)))

	release()
	_, err = r.PlayTurn(ctx, s.ID, "rest", "")
	assert.NoError(t, err)
}

func TestRunner_NotFound(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx := context.Background()

	_, err := r.PlayTurn(ctx, uuid.New(), "rest", "")
	assert.True(t, engerr.IsNotFound(err))

	_, _, err = r.View(ctx, uuid.New())
	assert.True(t, engerr.IsNotFound(err))

	assert.True(t, engerr.IsNotFound(r.EndSession(ctx, uuid.New())))
}

func TestRunner_InvariantViolationLeavesSessionUntouched(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	c := quest.NewCharacter("vel", "Vel")
	c.Active = &quest.ActiveQuest{QuestID: "errand"}
	c.Completed["errand"] = 0
	s := state.NewSession(c)
	s.Turn = 3
	require.NoError(t, store.SaveSession(ctx, s))

	res, err := r.PlayTurn(ctx, s.ID, "rest", "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, engerr.IsInvariant(err))

	saved, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Turn)
}

func TestRunner_SaveFailure(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	s, _, err := r.StartSession(ctx, quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)

	store.SetSaveError(errors.New("disk full"))
	_, err = r.PlayTurn(ctx, s.ID, "rest", "")
	require.Error(t, err)
	assert.Equal(t, engerr.CodeInternal, engerr.GetCode(err))

	_, _, err = r.StartSession(ctx, quest.NewCharacter("ash", "Ash"))
	assert.Equal(t, engerr.CodeInternal, engerr.GetCode(err))
}

func TestRunner_StartSessionRejectsBadCharacter(t *testing.T) {
	r, _, _ := newTestRunner(t)

	_, _, err := r.StartSession(context.Background(), quest.NewCharacter("", "nobody"))
	assert.True(t, engerr.Is(err, engerr.CodeUser))
}

func TestRunner_EndSession(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx := context.Background()

	s, _, err := r.StartSession(ctx, quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)

	sessions, err := r.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, r.EndSession(ctx, s.ID))
	_, err = r.Session(ctx, s.ID)
	assert.True(t, engerr.IsNotFound(err))
}
