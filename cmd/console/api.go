package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/turn"
)

// SheetView is the character sheet as the API renders it
type SheetView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Level       int            `json:"level"`
	Tier        string         `json:"tier"`
	Experience  int            `json:"experience"`
	HP          int            `json:"hp"`
	MaxHP       int            `json:"max_hp"`
	AC          int            `json:"ac"`
	Vitals      quest.Vitals   `json:"vitals"`
	Karma       int            `json:"karma"`
	Reputation  map[string]int `json:"reputation"`
	Conditions  map[string]int `json:"conditions"`
	ActiveQuest string         `json:"active_quest"`
	Completed   []string       `json:"completed"`
	Pending     int            `json:"pending_consequences"`
}

// TurnView is the part of a turn result the console shows
type TurnView struct {
	Turn      int             `json:"turn"`
	Narrative string          `json:"narrative"`
	Offers    []turn.Offer    `json:"offers"`
	Choices   []turn.Choice   `json:"choices"`
	Sheet     *SheetView      `json:"sheet"`
	Rejection *turn.Rejection `json:"rejection"`
}

type sessionView struct {
	ID     uuid.UUID `json:"id"`
	Turn   int       `json:"turn"`
	Result *TurnView `json:"result"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// apiError prefers the server's error message over the bare status
func apiError(action string, status int, body []byte) error {
	var errorResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("failed to %s: %s", action, errorResp.Error)
}

func doJSON(client *http.Client, method, url string, in any) (int, []byte, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func createSession(client *http.Client, baseURL string, req handlers.CreateSessionRequest) (*sessionView, error) {
	status, body, err := doJSON(client, http.MethodPost, baseURL+"/v1/sessions", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, apiError("create session", status, body)
	}

	var s sessionView
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &s, nil
}

func getSession(client *http.Client, baseURL string, id uuid.UUID) (*sessionView, error) {
	status, body, err := doJSON(client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("get session", status, body)
	}

	var s sessionView
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &s, nil
}

// playTurn returns the turn result. A rejected turn is a result, not an error.
func playTurn(client *http.Client, baseURL string, id uuid.UUID, req handlers.TurnRequest) (*TurnView, error) {
	status, body, err := doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/turns", baseURL, id), req)
	if err != nil {
		return nil, err
	}

	var res TurnView
	if jsonErr := json.Unmarshal(body, &res); jsonErr != nil && status == http.StatusOK {
		return nil, fmt.Errorf("failed to parse turn response: %w", jsonErr)
	}
	if status == http.StatusOK || res.Rejection != nil {
		return &res, nil
	}
	return nil, apiError("play turn", status, body)
}

func getLog(client *http.Client, baseURL string, id uuid.UUID) ([]quest.GameEvent, error) {
	status, body, err := doJSON(client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s/log", baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("get log", status, body)
	}

	var log handlers.LogResponse
	if err := json.Unmarshal(body, &log); err != nil {
		return nil, fmt.Errorf("failed to parse log response: %w", err)
	}
	return log.Events, nil
}
