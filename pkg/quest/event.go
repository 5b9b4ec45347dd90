package quest

// ConsequenceThread is the delayed event a quest schedules when it completes
type ConsequenceThread struct {
	TriggerOffset int    `json:"trigger_offset"`
	EventID       string `json:"event_id"`
	Description   string `json:"description"`
	Effect        *Delta `json:"effect,omitempty"` // applied to the character when the event fires
}

// Clone returns a deep copy of t
func (t *ConsequenceThread) Clone() *ConsequenceThread {
	if t == nil {
		return nil
	}
	out := *t
	out.Effect = t.Effect.Clone()
	return &out
}

// ScheduledEvent is a consequence waiting for its due turn.
// Only Fired and FiredTurn change after creation, and only once.
type ScheduledEvent struct {
	Seq         int    `json:"seq"` // creation order within the owning character
	EventID     string `json:"event_id"`
	Description string `json:"description"`
	SourceQuest string `json:"source_quest,omitempty"`
	CreatedTurn int    `json:"created_turn"`
	DueTurn     int    `json:"due_turn"`
	Fired       bool   `json:"fired"`
	FiredTurn   int    `json:"fired_turn,omitempty"`
	Effect      *Delta `json:"effect,omitempty"`
}

func (e ScheduledEvent) clone() ScheduledEvent {
	e.Effect = e.Effect.Clone()
	return e
}

// GameEventKind classifies an audit record
type GameEventKind string

const (
	EventActionApplied        GameEventKind = "action_applied"
	EventQuestStarted         GameEventKind = "quest_started"
	EventQuestCompleted       GameEventKind = "quest_completed"
	EventConsequenceScheduled GameEventKind = "consequence_scheduled"
	EventConsequenceFired     GameEventKind = "consequence_fired"
	EventLevelUp              GameEventKind = "level_up"
)

// GameEvent is an immutable audit record of one state change
type GameEvent struct {
	ID          string        `json:"id"`
	Turn        int           `json:"turn"`
	CharacterID string        `json:"character_id"`
	Kind        GameEventKind `json:"kind"`
	Action      string        `json:"action,omitempty"`
	QuestID     string        `json:"quest_id,omitempty"`
	EventID     string        `json:"event_id,omitempty"`
	Delta       *Delta        `json:"delta,omitempty"`
	Level       int           `json:"level,omitempty"`
}
