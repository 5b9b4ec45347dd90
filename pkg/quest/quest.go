package quest

import (
	"maps"
	"slices"
)

// LevelRange is an inclusive level band. Max 0 means no upper bound.
type LevelRange struct {
	Min int `json:"min"`
	Max int `json:"max,omitempty"`
}

func (r LevelRange) Contains(level int) bool {
	if level < r.Min {
		return false
	}
	return r.Max == 0 || level <= r.Max
}

// Quest is read-only reference data loaded with the catalog
type Quest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tier        Tier       `json:"tier,omitempty"` // derived from Levels.Min when omitted
	Levels      LevelRange `json:"level_range"`

	Prerequisites []string       `json:"prerequisites,omitempty"`
	Requirements  map[string]int `json:"requirements,omitempty"` // requirement name -> threshold
	Risk          Risk           `json:"risk"`

	// Continues names the quest this one picks up from. A continuation may be
	// started while its predecessor is the active quest.
	Continues string `json:"continues,omitempty"`

	Actions     []string           `json:"actions,omitempty"` // available while this quest is active
	Reward      *Delta             `json:"reward,omitempty"`
	Consequence *ConsequenceThread `json:"consequence,omitempty"`
}

// Clone returns a deep copy of q
func (q Quest) Clone() Quest {
	q.Prerequisites = slices.Clone(q.Prerequisites)
	q.Requirements = maps.Clone(q.Requirements)
	q.Actions = slices.Clone(q.Actions)
	q.Reward = q.Reward.Clone()
	q.Consequence = q.Consequence.Clone()
	return q
}

// DisplayName falls back to the ID when no name is set
func (q Quest) DisplayName() string {
	if q.Name != "" {
		return q.Name
	}
	return q.ID
}

// Action is a player choice with declared stat deltas
type Action struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Delta       *Delta `json:"delta,omitempty"`

	// CompletesQuest completes the active quest when the action is taken
	CompletesQuest bool `json:"completes_quest,omitempty"`

	// Global actions are available at any time; others only while a quest listing them is active
	Global bool `json:"global,omitempty"`
}

// Clone returns a deep copy of a
func (a Action) Clone() Action {
	a.Delta = a.Delta.Clone()
	return a
}
