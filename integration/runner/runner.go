package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/handlers"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running quest-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// a sequence may reference another sequence
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite on a fresh session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	session, err := r.createSession(ctx, suite.Character)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = session.ID
	turn := session.Turn

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult, newTurn := r.runStep(ctx, session.ID, step, turn)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
		} else {
			r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
		}

		// re-read the turn so a failed step does not throw later steps off
		if s, err := GetSession(ctx, r.Client, r.BaseURL, session.ID); err == nil {
			turn = s.Turn
		} else {
			turn = newTurn
		}
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) createSession(ctx context.Context, character handlers.CreateSessionRequest) (*SessionView, error) {
	if character.CharacterID == "" {
		character.CharacterID = "it_" + uuid.NewString()[:8]
	}
	body, err := json.Marshal(character)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(body))
	}

	var s SessionView
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode created session: %w", err)
	}
	return &s, nil
}

// runStep plays the step's turn Repeat times and checks the last outcome.
// It returns the session turn after the step.
func (r *Runner) runStep(ctx context.Context, sessionID uuid.UUID, step TestStep, turn int) (TestResult, int) {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	fail := func(err error) (TestResult, int) {
		result.Error = err
		result.Duration = time.Since(start)
		return result, turn
	}

	if step.Async && step.Expectations.Rejected != "" {
		return fail(fmt.Errorf("async steps cannot expect a rejection"))
	}

	body := handlers.TurnRequest{ActionID: step.ActionID, QuestID: step.QuestID}
	var view *TurnView
	var fired []string
	for range max(step.Repeat, 1) {
		var err error
		if step.Async {
			view, fired, err = r.playAsync(ctx, sessionID, body, turn, &result)
		} else {
			view, err = r.playSync(ctx, sessionID, body)
			if view != nil {
				fired = firedIDs(view)
			}
		}
		if err != nil {
			return fail(err)
		}
		if view.Rejection == nil {
			turn = view.Turn
		}
	}
	result.Narrative = view.Narrative

	if err := CheckExpectations(step.Expectations, view, fired); err != nil {
		return fail(fmt.Errorf("expectation failed: %w", err))
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result, turn
}

func firedIDs(view *TurnView) []string {
	var out []string
	for _, ev := range view.Fired {
		out = append(out, ev.EventID)
	}
	return out
}

func (r *Runner) playSync(ctx context.Context, sessionID uuid.UUID, body handlers.TurnRequest) (*TurnView, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/turns", r.BaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send turn request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read turn response: %w", err)
	}

	var view TurnView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("turn endpoint returned %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK && view.Rejection == nil {
		return nil, fmt.Errorf("turn endpoint returned %d: %s", resp.StatusCode, string(raw))
	}
	return &view, nil
}

// playAsync queues the turn, waits for a worker to play it and reads the
// fired consequences back from the audit log
func (r *Runner) playAsync(ctx context.Context, sessionID uuid.UUID, body handlers.TurnRequest, turn int, result *TestResult) (*TurnView, []string, error) {
	requestID, err := PostTurnAsync(ctx, r.Client, r.BaseURL, sessionID, body)
	if err != nil {
		return nil, nil, err
	}
	result.RequestID = requestID

	s, err := PollForTurn(ctx, r.Client, r.BaseURL, sessionID, turn)
	if err != nil {
		return nil, nil, err
	}
	if s.Result == nil {
		return nil, nil, fmt.Errorf("session %s has no result", sessionID)
	}
	s.Result.Turn = s.Turn

	events, err := GetLog(ctx, r.Client, r.BaseURL, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.Result, FiredOnTurn(events, s.Turn), nil
}

// CheckExpectations validates a turn's outcome against the step's expectations
func CheckExpectations(exp Expectations, view *TurnView, fired []string) error {
	if exp.Rejected != "" {
		if view.Rejection == nil {
			return fmt.Errorf("expected a %s rejection, but the turn was accepted", exp.Rejected)
		}
		if string(view.Rejection.Code) != exp.Rejected {
			return fmt.Errorf("expected rejection code %s, got %s (%s)", exp.Rejected, view.Rejection.Code, view.Rejection.Message)
		}
	} else if view.Rejection != nil {
		return fmt.Errorf("turn was rejected: %s (%s)", view.Rejection.Message, view.Rejection.Code)
	}

	if exp.Turn != nil && view.Turn != *exp.Turn {
		return fmt.Errorf("expected turn %d, got %d", *exp.Turn, view.Turn)
	}

	if err := checkSheet(exp, view.Sheet); err != nil {
		return err
	}

	offered := make([]string, len(view.Offers))
	for i, o := range view.Offers {
		offered[i] = o.ID
	}
	for _, id := range exp.Offers {
		if !slices.Contains(offered, id) {
			return fmt.Errorf("expected quest '%s' to be offered. Offers: %v", id, offered)
		}
	}
	for _, id := range exp.NotOffers {
		if slices.Contains(offered, id) {
			return fmt.Errorf("quest '%s' is offered but should not be. Offers: %v", id, offered)
		}
	}

	if exp.Fired != nil && !slices.Equal(exp.Fired, fired) {
		return fmt.Errorf("expected fired consequences %v, got %v", exp.Fired, fired)
	}

	lowerNarrative := strings.ToLower(view.Narrative)
	for _, expectedText := range exp.NarrativeContains {
		if !strings.Contains(lowerNarrative, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected narrative to contain '%s', but it didn't", expectedText)
		}
	}

	return nil
}

func checkSheet(exp Expectations, sheet *SheetView) error {
	needsSheet := exp.Level != nil || exp.Tier != nil || exp.ActiveQuest != nil || exp.Pending != nil ||
		exp.Karma != nil || len(exp.Completed) > 0 || len(exp.Reputation) > 0
	if !needsSheet {
		return nil
	}
	if sheet == nil {
		return fmt.Errorf("response has no character sheet")
	}

	if exp.Level != nil && sheet.Level != *exp.Level {
		return fmt.Errorf("expected level %d, got %d", *exp.Level, sheet.Level)
	}
	if exp.Tier != nil && sheet.Tier != *exp.Tier {
		return fmt.Errorf("expected tier %s, got %s", *exp.Tier, sheet.Tier)
	}
	if exp.ActiveQuest != nil && sheet.ActiveQuest != *exp.ActiveQuest {
		return fmt.Errorf("expected active quest '%s', got '%s'", *exp.ActiveQuest, sheet.ActiveQuest)
	}
	if exp.Pending != nil && sheet.Pending != *exp.Pending {
		return fmt.Errorf("expected %d pending consequences, got %d", *exp.Pending, sheet.Pending)
	}
	if exp.Karma != nil && sheet.Karma != *exp.Karma {
		return fmt.Errorf("expected karma %d, got %d", *exp.Karma, sheet.Karma)
	}
	for _, id := range exp.Completed {
		if !slices.Contains(sheet.Completed, id) {
			return fmt.Errorf("expected quest '%s' to be completed. Completed: %v", id, sheet.Completed)
		}
	}
	for faction, want := range exp.Reputation {
		if got := sheet.Reputation[faction]; got != want {
			return fmt.Errorf("expected %s reputation %d, got %d", faction, want, got)
		}
	}
	return nil
}
