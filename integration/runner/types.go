package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name      string                        `json:"name"`
	Character handlers.CreateSessionRequest `json:"character,omitempty"` // Used for regular tests
	Steps     []TestStep                    `json:"steps,omitempty"`     // Used for regular tests
	Cases     []string                      `json:"cases,omitempty"`     // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one turn and what it should produce. Repeat plays the same
// turn several times and checks the expectations after the last one.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	ActionID     string       `json:"action_id,omitempty"`
	QuestID      string       `json:"quest_id,omitempty"`
	Repeat       int          `json:"repeat,omitempty"`
	Async        bool         `json:"async,omitempty"` // queue the turn for a worker instead of playing it inline
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Rejection code, e.g. "validation". Empty means the turn must be accepted.
	Rejected string `json:"rejected,omitempty"`

	Turn        *int    `json:"turn,omitempty"`
	Level       *int    `json:"level,omitempty"`
	Tier        *string `json:"tier,omitempty"`
	ActiveQuest *string `json:"active_quest,omitempty"` // "" expects no active quest
	Pending     *int    `json:"pending_consequences,omitempty"`
	Karma       *int    `json:"karma,omitempty"`

	Completed  []string       `json:"completed,omitempty"`  // must all be completed
	Reputation map[string]int `json:"reputation,omitempty"` // exact scores for the named factions

	Offers    []string `json:"offers,omitempty"`     // must all be offered
	NotOffers []string `json:"not_offers,omitempty"` // must not be offered
	Fired     []string `json:"fired,omitempty"`      // consequence event ids fired by this turn, in order

	NarrativeContains []string `json:"narrative_contains,omitempty"`
}

// SheetView is the character sheet as the API renders it
type SheetView struct {
	Level       int            `json:"level"`
	Tier        string         `json:"tier"`
	Karma       int            `json:"karma"`
	Reputation  map[string]int `json:"reputation"`
	ActiveQuest string         `json:"active_quest"`
	Completed   []string       `json:"completed"`
	Pending     int            `json:"pending_consequences"`
}

// TurnView is a turn result as the API returns it
type TurnView struct {
	Turn      int                    `json:"turn"`
	Narrative string                 `json:"narrative"`
	Offers    []turn.Offer           `json:"offers"`
	Fired     []quest.ScheduledEvent `json:"fired"`
	Sheet     *SheetView             `json:"sheet"`
	Rejection *turn.Rejection        `json:"rejection"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	Narrative string
	RequestID string // set for async steps
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // ID of the session used for this test
}
