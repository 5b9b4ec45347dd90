package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// Session is the persisted state of one play session: a character and the
// turn it is on.
type Session struct {
	ID        uuid.UUID        `json:"id"`
	Character *quest.Character `json:"character"`
	Turn      int              `json:"turn"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession starts a session at turn 0 for c
func NewSession(c *quest.Character) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Character: c,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CharacterID returns the ID of the session's character, or "" if there is none
func (s *Session) CharacterID() string {
	if s.Character == nil {
		return ""
	}
	return s.Character.ID
}

// LockKey is the key turns for this session are serialized on
func (s *Session) LockKey() string {
	return LockKey(s.ID)
}

func LockKey(id uuid.UUID) string {
	return "session:" + id.String()
}
