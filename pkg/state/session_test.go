package state

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

func TestNewSession(t *testing.T) {
	c := quest.NewCharacter("vel", "Vel")
	s := NewSession(c)

	if s.ID == uuid.Nil {
		t.Error("NewSession() ID is nil")
	}
	if s.Turn != 0 {
		t.Errorf("Turn = %d, want 0", s.Turn)
	}
	if s.CharacterID() != "vel" {
		t.Errorf("CharacterID() = %q, want vel", s.CharacterID())
	}
	if s.LockKey() != "session:"+s.ID.String() {
		t.Errorf("LockKey() = %q", s.LockKey())
	}
}

func TestSession_JSONKeepsScheduledEvents(t *testing.T) {
	c := quest.NewCharacter("vel", "Vel")
	c.Completed["trade_war"] = 10
	c.Scheduled = []quest.ScheduledEvent{{Seq: 0, EventID: "rival_ambush", CreatedTurn: 10, DueTurn: 15}}
	c.NextSeq = 1
	s := NewSession(c)
	s.Turn = 11

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var got Session
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got.ID != s.ID || got.Turn != 11 {
		t.Errorf("got id=%v turn=%d, want id=%v turn=11", got.ID, got.Turn, s.ID)
	}
	if len(got.Character.Scheduled) != 1 || got.Character.Scheduled[0].DueTurn != 15 {
		t.Errorf("scheduled events not restored: %+v", got.Character.Scheduled)
	}
	if got.Character.Completed["trade_war"] != 10 {
		t.Errorf("completed = %v", got.Character.Completed)
	}
}
