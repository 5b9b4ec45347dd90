package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/quest/questtest"
	queuePkg "github.com/jwebster45206/quest-engine/pkg/queue"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

type fixture struct {
	worker      *Worker
	runner      *engine.Runner
	queue       *queue.TurnQueue
	broadcaster *events.Broadcaster
	guard       *turn.Guard
	session     *state.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := questtest.Catalog()
	guard := turn.NewGuard()
	runner := engine.NewRunner(storage.NewMockStorage(cat), turn.New(cat), guard, logger)
	q := queue.NewTurnQueue(client, logger)
	b := events.NewBroadcaster(client, logger)

	s, _, err := runner.StartSession(context.Background(), quest.NewCharacter("vel", "Vel"))
	require.NoError(t, err)

	return &fixture{
		worker:      New(q, runner, b, logger, "test-worker"),
		runner:      runner,
		queue:       q,
		broadcaster: b,
		guard:       guard,
		session:     s,
	}
}

// subscribe returns a function that waits for the next event on the session channel
func (f *fixture) subscribe(t *testing.T) func() events.Event {
	t.Helper()
	ctx := context.Background()
	sub := f.broadcaster.Subscribe(ctx, f.session.ID)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	return func() events.Event {
		t.Helper()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	}
}

func TestWorker_ProcessCompletesTurn(t *testing.T) {
	f := newFixture(t)
	next := f.subscribe(t)
	ctx := context.Background()

	req := queuePkg.NewRequest(f.session.ID, "", "errand")
	require.NoError(t, f.worker.Process(ctx, req))

	assert.Equal(t, events.EventTypeTurnProcessing, next().Type)
	done := next()
	assert.Equal(t, events.EventTypeTurnCompleted, done.Type)
	assert.Equal(t, req.RequestID, done.RequestID)

	s, err := f.runner.Session(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Turn)
	assert.Equal(t, "errand", s.Character.Active.QuestID)
}

func TestWorker_ProcessPublishesRejection(t *testing.T) {
	f := newFixture(t)
	next := f.subscribe(t)

	require.NoError(t, f.worker.Process(context.Background(), queuePkg.NewRequest(f.session.ID, "haggle", "")))

	next() // processing
	ev := next()
	assert.Equal(t, events.EventTypeTurnRejected, ev.Type)
	rejection, ok := ev.Data["rejection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user_error", rejection["code"])
}

func TestWorker_BusySessionIsRequeued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release, err := f.guard.Acquire(ctx, f.session.LockKey())
	require.NoError(t, err)
	defer release()

	req := queuePkg.NewRequest(f.session.ID, "rest", "")
	require.NoError(t, f.worker.Process(ctx, req))

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	requeued, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, requeued.RequestID)
	assert.Equal(t, 1, requeued.Attempts)
}

func TestWorker_BusyTooLongFails(t *testing.T) {
	f := newFixture(t)
	next := f.subscribe(t)
	ctx := context.Background()

	release, err := f.guard.Acquire(ctx, f.session.LockKey())
	require.NoError(t, err)
	defer release()

	req := queuePkg.NewRequest(f.session.ID, "rest", "")
	req.Attempts = MaxAttempts
	require.NoError(t, f.worker.Process(ctx, req))

	next() // processing
	assert.Equal(t, events.EventTypeTurnFailed, next().Type)

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestWorker_StartDrainsQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, queuePkg.NewRequest(f.session.ID, "", "errand")))
	require.NoError(t, f.queue.Enqueue(ctx, queuePkg.NewRequest(f.session.ID, "report_back", "")))

	done := make(chan error, 1)
	go func() { done <- f.worker.Start() }()

	require.Eventually(t, func() bool {
		s, err := f.runner.Session(ctx, f.session.ID)
		return err == nil && s.Turn == 2
	}, 5*time.Second, 20*time.Millisecond)

	f.worker.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}

	s, err := f.runner.Session(ctx, f.session.ID)
	require.NoError(t, err)
	assert.True(t, s.Character.HasCompleted("errand"))
}

func TestNew_GeneratesID(t *testing.T) {
	f := newFixture(t)
	w := New(f.queue, f.runner, f.broadcaster, slog.New(slog.NewTextHandler(io.Discard, nil)), "")
	assert.Contains(t, w.ID(), "worker-")
}
