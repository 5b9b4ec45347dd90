package turn

import (
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/eligibility"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// Request is one player turn. Exactly one of ActionID and QuestID is set.
type Request struct {
	Character *quest.Character `json:"character"`
	ActionID  string           `json:"action_id,omitempty"`
	QuestID   string           `json:"quest_id,omitempty"`
	Turn      int              `json:"turn"`
}

// BeatKind classifies a narrative beat
type BeatKind string

const (
	BeatOpening        BeatKind = "opening"
	BeatAction         BeatKind = "action"
	BeatQuestStarted   BeatKind = "quest_started"
	BeatQuestCompleted BeatKind = "quest_completed"
	BeatLevelUp        BeatKind = "level_up"
	BeatConsequence    BeatKind = "consequence"
	BeatFiller         BeatKind = "filler"
)

// Beat is one line of narrative, in the order it happened
type Beat struct {
	Kind    BeatKind `json:"kind"`
	Text    string   `json:"text"`
	QuestID string   `json:"quest_id,omitempty"`
	EventID string   `json:"event_id,omitempty"`
}

// Offer is a quest the character may start next turn
type Offer struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tier        quest.Tier `json:"tier"`
	Risk        quest.Risk `json:"risk"`
}

// Choice is an action the character may take next turn
type Choice struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	CompletesQuest bool   `json:"completes_quest,omitempty"`
}

// Rejection explains why a turn was refused. The character is unchanged.
type Rejection struct {
	Code    engerr.Code          `json:"code"`
	Message string               `json:"message"`
	Reasons []eligibility.Reason `json:"reasons,omitempty"`
}

// Result is the outcome of a turn. When Rejection is set, Character is the
// unchanged input and Turn is the request's turn.
type Result struct {
	Character *quest.Character       `json:"character"`
	Turn      int                    `json:"turn"`
	Narrative string                 `json:"narrative"`
	Beats     []Beat                 `json:"beats,omitempty"`
	Offers    []Offer                `json:"offers"`
	Choices   []Choice               `json:"choices"`
	Fired     []quest.ScheduledEvent `json:"fired,omitempty"`
	Events    []quest.GameEvent      `json:"events,omitempty"`
	Sheet     *actor.Sheet           `json:"sheet,omitempty"`
	Rejection *Rejection             `json:"rejection,omitempty"`
}

// Rejected reports whether the turn was refused
func (r *Result) Rejected() bool {
	return r.Rejection != nil
}

// ConsequenceDescriptions returns the descriptions of the events fired this turn
func (r *Result) ConsequenceDescriptions() []string {
	out := make([]string, len(r.Fired))
	for i, ev := range r.Fired {
		out[i] = ev.Description
	}
	return out
}

func joinBeats(beats []Beat) string {
	lines := make([]string, len(beats))
	for i, b := range beats {
		lines[i] = b.Text
	}
	return strings.Join(lines, "\n")
}
