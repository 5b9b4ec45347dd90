package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request is a queued turn for a session. Exactly one of ActionID and QuestID is set.
type Request struct {
	RequestID string    `json:"request_id"`
	SessionID uuid.UUID `json:"session_id"`
	ActionID  string    `json:"action_id,omitempty"`
	QuestID   string    `json:"quest_id,omitempty"`

	// Attempts counts how many times a worker found the session busy and re-queued the request
	Attempts int `json:"attempts,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest returns a request with a fresh ID
func NewRequest(sessionID uuid.UUID, actionID, questID string) *Request {
	return &Request{
		RequestID:  uuid.NewString(),
		SessionID:  sessionID,
		ActionID:   actionID,
		QuestID:    questID,
		EnqueuedAt: time.Now(),
	}
}

// Validate checks the fields a worker needs before the request is queued
func (r *Request) Validate() error {
	if r.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	if (r.ActionID == "") == (r.QuestID == "") {
		return fmt.Errorf("exactly one of action_id or quest_id is required")
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
