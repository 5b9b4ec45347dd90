package runner

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

const casesDir = "../cases"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := quest.LoadCatalog("../../data/catalog.json")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMockStorage(cat)
	mux := handlers.NewRouter(handlers.Deps{
		Storage:     store,
		Runner:      engine.NewRunner(store, turn.New(cat), turn.NewGuard(), logger),
		Queue:       queue.NewTurnQueue(client, logger),
		Broadcaster: events.NewBroadcaster(client, logger),
		Logger:      logger,
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRunSuite_ShippedCases(t *testing.T) {
	server := newTestServer(t)
	r := NewRunner(server.URL)
	r.Client = server.Client()

	jobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, "suites", "smoke.json"), casesDir)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for _, job := range jobs {
		t.Run(job.Name, func(t *testing.T) {
			result, err := r.RunSuite(context.Background(), job.Suite)
			require.NoError(t, err)
			assert.NotEmpty(t, result.Session)
			for _, step := range result.Results {
				assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
			}
		})
	}
}

func TestRunSuite_ReportsFailedStep(t *testing.T) {
	server := newTestServer(t)
	r := NewRunner(server.URL)
	r.Client = server.Client()
	r.ErrorHandlingMode = ErrorHandlingExit

	wrongTurn := 5
	suite := TestSuite{
		Name: "wrong turn",
		Steps: []TestStep{
			{Name: "rest", ActionID: "rest", Expectations: Expectations{Turn: &wrongTurn}},
			{Name: "never runs", ActionID: "rest"},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.ErrorContains(t, err, "expected turn 5, got 1")
	assert.Len(t, result.Results, 1)
}

func TestLoadTestSuite(t *testing.T) {
	_, err := LoadTestSuite(filepath.Join(casesDir, "suites", "missing.json"))
	assert.ErrorContains(t, err, "failed to read test file")

	suite, err := LoadTestSuite(filepath.Join(casesDir, "trade_war_consequence.json"))
	require.NoError(t, err)
	assert.False(t, suite.IsSequence())
	assert.Equal(t, 3, suite.Steps[3].Repeat)
}

func TestCheckExpectations(t *testing.T) {
	one := 1
	empty := ""
	view := &TurnView{
		Turn:      7,
		Narrative: "Agents of the rival cartel ambush you on the trade road.",
		Offers:    []turn.Offer{{ID: "trade_war_aftermath"}},
		Sheet: &SheetView{
			Level:      4,
			Tier:       "apprentice",
			Reputation: map[string]int{"merchants": 15},
			Completed:  []string{"trade_war"},
			Pending:    1,
		},
	}

	tests := []struct {
		name    string
		exp     Expectations
		fired   []string
		wantErr string
	}{
		{"matches", Expectations{Pending: &one, ActiveQuest: &empty, Completed: []string{"trade_war"}, Fired: []string{"rival_ambush"}}, []string{"rival_ambush"}, ""},
		{"narrative is case insensitive", Expectations{NarrativeContains: []string{"RIVAL CARTEL"}}, nil, ""},
		{"empty fired matches nil", Expectations{Fired: []string{}}, nil, ""},
		{"missing fired event", Expectations{Fired: []string{"rival_ambush"}}, nil, "expected fired consequences"},
		{"missing offer", Expectations{Offers: []string{"errand"}}, nil, "to be offered"},
		{"unwanted offer", Expectations{NotOffers: []string{"trade_war_aftermath"}}, nil, "should not be"},
		{"wrong reputation", Expectations{Reputation: map[string]int{"merchants": 10}}, nil, "merchants reputation 10, got 15"},
		{"expected rejection", Expectations{Rejected: "validation"}, nil, "turn was accepted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckExpectations(tt.exp, view, tt.fired)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	rejected := &TurnView{Turn: 0, Rejection: &turn.Rejection{Code: engerr.CodeUser, Message: `unknown action "fly"`}}
	assert.NoError(t, CheckExpectations(Expectations{Rejected: "user_error"}, rejected, nil))
	assert.ErrorContains(t, CheckExpectations(Expectations{Rejected: "validation"}, rejected, nil), "got user_error")
	assert.ErrorContains(t, CheckExpectations(Expectations{}, rejected, nil), "turn was rejected")
	assert.ErrorContains(t, CheckExpectations(Expectations{Level: &one}, &TurnView{Turn: 1}, nil), "no character sheet")
}

func TestFiredOnTurn(t *testing.T) {
	events := []quest.GameEvent{
		{Turn: 6, Kind: quest.EventActionApplied, Action: "rest"},
		{Turn: 7, Kind: quest.EventConsequenceFired, EventID: "rival_ambush"},
		{Turn: 8, Kind: quest.EventConsequenceFired, EventID: "customs_raid"},
	}
	assert.Equal(t, []string{"rival_ambush"}, FiredOnTurn(events, 7))
	assert.Nil(t, FiredOnTurn(events, 6))
}
