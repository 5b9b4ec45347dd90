// Package turn runs one player turn against a character snapshot.
//
// The orchestrator never performs I/O and never changes the character it is
// given: it works on a clone and returns the clone in the Result. A turn
// either completes fully or is refused before anything changes.
package turn

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/consequence"
	"github.com/jwebster45206/quest-engine/pkg/eligibility"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/picker"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// IDGenerator returns a new unique audit event ID
type IDGenerator func() string

// Orchestrator has no mutable state and is safe for concurrent use.
// Callers must still serialize turns for the same character; see Guard.
type Orchestrator struct {
	catalog   *quest.Catalog
	picker    *picker.Picker
	scheduler *consequence.Scheduler
	newID     IDGenerator
}

type Option func(*Orchestrator)

// WithOfferSize overrides the catalog's offer size
func WithOfferSize(n int) Option {
	return func(o *Orchestrator) { o.picker = picker.New(n) }
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

func New(catalog *quest.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		picker:    picker.New(0),
		scheduler: consequence.New(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Catalog() *quest.Catalog {
	return o.catalog
}

// turnState accumulates the output of one turn
type turnState struct {
	c      *quest.Character
	turn   int
	beats  []Beat
	fired  []quest.ScheduledEvent
	events []quest.GameEvent
	say    *narrator
}

func (o *Orchestrator) record(ts *turnState, kind quest.GameEventKind, turn int, fill func(*quest.GameEvent)) {
	ev := quest.GameEvent{
		ID:          o.newID(),
		Turn:        turn,
		CharacterID: ts.c.ID,
		Kind:        kind,
	}
	if fill != nil {
		fill(&ev)
	}
	ts.events = append(ts.events, ev)
}

// Process runs one turn. User and validation errors come back as a Result
// with Rejection set and a nil error. Invariant violations return a nil
// Result and an error with code invariant.
func (o *Orchestrator) Process(req Request) (*Result, error) {
	if rej := validateRequest(req); rej != nil {
		return o.reject(req, rej)
	}
	if err := o.checkCharacter(req.Character); err != nil {
		return nil, err
	}

	ts := &turnState{c: req.Character.Clone(), turn: req.Turn, say: newNarrator()}
	ts.c.Normalize()

	var rej *Rejection
	var err error
	if req.QuestID != "" {
		rej, err = o.startQuest(ts, req.QuestID)
	} else {
		rej, err = o.takeAction(ts, req.ActionID)
	}
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return o.reject(req, rej)
	}

	o.levelUp(ts, req.Turn)

	next := req.Turn + 1
	fired, err := o.scheduler.Advance(ts.c, next)
	if err != nil {
		return nil, err
	}
	for _, ev := range fired {
		applied := ts.c.Apply(ev.Effect)
		ts.beats = append(ts.beats, ts.say.consequence(ev))
		o.record(ts, quest.EventConsequenceFired, next, func(g *quest.GameEvent) {
			g.QuestID = ev.SourceQuest
			g.EventID = ev.EventID
			g.Delta = deltaOrNil(applied)
		})
	}
	ts.fired = fired
	o.levelUp(ts, next)

	if err := o.checkTransition(req.Character, ts.c, fired); err != nil {
		return nil, err
	}
	return o.finish(ts, next)
}

// Opening builds the first Result of a session without taking a turn
func (o *Orchestrator) Opening(c *quest.Character, turn int) (*Result, error) {
	if c == nil || c.ID == "" {
		return nil, engerr.User("character id is required")
	}
	if turn < 0 {
		return nil, engerr.User("turn must not be negative")
	}
	if err := o.checkCharacter(c); err != nil {
		return nil, err
	}
	ts := &turnState{c: c.Clone(), turn: turn, say: newNarrator()}
	ts.c.Normalize()
	ts.beats = append(ts.beats, ts.say.opening(ts.c))
	return o.finish(ts, turn)
}

// View describes a character between turns: offers, choices and sheet, with no turn taken
func (o *Orchestrator) View(c *quest.Character, turn int) (*Result, error) {
	if c == nil || c.ID == "" {
		return nil, engerr.User("character id is required")
	}
	if turn < 0 {
		return nil, engerr.User("turn must not be negative")
	}
	if err := o.checkCharacter(c); err != nil {
		return nil, err
	}
	ts := &turnState{c: c.Clone(), turn: turn, say: newNarrator()}
	ts.c.Normalize()
	return o.finish(ts, turn)
}

func validateRequest(req Request) *Rejection {
	switch {
	case req.Character == nil:
		return &Rejection{Code: engerr.CodeUser, Message: "character is required"}
	case req.Character.ID == "":
		return &Rejection{Code: engerr.CodeUser, Message: "character id is required"}
	case req.ActionID == "" && req.QuestID == "":
		return &Rejection{Code: engerr.CodeUser, Message: "one of action_id or quest_id is required"}
	case req.ActionID != "" && req.QuestID != "":
		return &Rejection{Code: engerr.CodeUser, Message: "only one of action_id or quest_id may be set"}
	case req.Turn < 0:
		return &Rejection{Code: engerr.CodeUser, Message: "turn must not be negative"}
	}
	return nil
}

func (o *Orchestrator) startQuest(ts *turnState, questID string) (*Rejection, error) {
	q, ok := o.catalog.Quest(questID)
	if !ok {
		return &Rejection{Code: engerr.CodeUser, Message: fmt.Sprintf("unknown quest %q", questID)}, nil
	}

	res := eligibility.Evaluate(ts.c, q)
	if !res.Eligible {
		return &Rejection{
			Code:    engerr.CodeValidation,
			Message: fmt.Sprintf("cannot start %q: %s", questID, res.Summary()),
			Reasons: res.Reasons,
		}, nil
	}
	if !o.picker.Contains(ts.c, o.catalog, ts.turn, questID) {
		return &Rejection{Code: engerr.CodeUser, Message: fmt.Sprintf("quest %q is not currently offered", questID)}, nil
	}

	if active, ok := ts.c.ActiveQuestID(); ok && q.Continues == active {
		if err := o.completeQuest(ts, active); err != nil {
			return nil, err
		}
	}

	ts.c.Active = &quest.ActiveQuest{QuestID: q.ID, StartedTurn: ts.turn}
	ts.beats = append(ts.beats, ts.say.questStarted(q))
	o.record(ts, quest.EventQuestStarted, ts.turn, func(g *quest.GameEvent) { g.QuestID = q.ID })
	return nil, nil
}

func (o *Orchestrator) takeAction(ts *turnState, actionID string) (*Rejection, error) {
	a, ok := o.catalog.Action(actionID)
	if !ok {
		return &Rejection{Code: engerr.CodeUser, Message: fmt.Sprintf("unknown action %q", actionID)}, nil
	}
	if !o.actionAvailable(ts.c, actionID) {
		return &Rejection{Code: engerr.CodeUser, Message: fmt.Sprintf("action %q is not available", actionID)}, nil
	}

	applied := ts.c.Apply(a.Delta)
	ts.beats = append(ts.beats, ts.say.action(a))
	o.record(ts, quest.EventActionApplied, ts.turn, func(g *quest.GameEvent) {
		g.Action = a.ID
		g.Delta = deltaOrNil(applied)
	})

	if a.CompletesQuest {
		if active, ok := ts.c.ActiveQuestID(); ok {
			if err := o.completeQuest(ts, active); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (o *Orchestrator) actionAvailable(c *quest.Character, actionID string) bool {
	for _, a := range o.catalog.AvailableActions(c) {
		if a.ID == actionID {
			return true
		}
	}
	return false
}

// completeQuest moves the active quest to completed, applies its reward and
// schedules its consequence
func (o *Orchestrator) completeQuest(ts *turnState, questID string) error {
	q, ok := o.catalog.Quest(questID)
	if !ok {
		return engerr.Invariantf("active quest %q is not in the catalog", questID)
	}

	ts.c.Active = nil
	ts.c.Completed[q.ID] = ts.turn
	applied := ts.c.Apply(q.Reward)
	ts.beats = append(ts.beats, ts.say.questCompleted(q))
	o.record(ts, quest.EventQuestCompleted, ts.turn, func(g *quest.GameEvent) {
		g.QuestID = q.ID
		g.Delta = deltaOrNil(applied)
	})

	if q.Consequence == nil {
		return nil
	}
	ev, err := o.scheduler.Schedule(ts.c, *q.Consequence, q.ID, ts.turn)
	if err != nil {
		return engerr.WrapWithCode(err, engerr.CodeInvariant, "failed to schedule consequence")
	}
	o.record(ts, quest.EventConsequenceScheduled, ts.turn, func(g *quest.GameEvent) {
		g.QuestID = q.ID
		g.EventID = ev.EventID
	})
	return nil
}

// levelUp raises the level to match experience. Levels never go down.
func (o *Orchestrator) levelUp(ts *turnState, turn int) {
	level := max(ts.c.Level, 1+ts.c.Experience/o.catalog.XPPerLevel())
	if level == ts.c.Level {
		return
	}
	ts.c.Level = level
	ts.beats = append(ts.beats, ts.say.levelUp(level))
	o.record(ts, quest.EventLevelUp, turn, func(g *quest.GameEvent) { g.Level = level })
}

// finish adds offers, choices, the sheet and filler to a completed turn
func (o *Orchestrator) finish(ts *turnState, turn int) (*Result, error) {
	offers := o.picker.Collect(ts.c, o.catalog, turn)
	if len(offers) == 0 && ts.c.Active == nil {
		ts.beats = append(ts.beats, filler(o.catalog.Filler(turn)))
	}

	sheet, err := actor.NewSheet(ts.c)
	if err != nil {
		return nil, engerr.Wrap(err, "failed to build character sheet")
	}

	return &Result{
		Character: ts.c,
		Turn:      turn,
		Narrative: joinBeats(ts.beats),
		Beats:     ts.beats,
		Offers:    toOffers(offers),
		Choices:   o.choices(ts.c),
		Fired:     ts.fired,
		Events:    ts.events,
		Sheet:     sheet,
	}, nil
}

// reject returns the unchanged character with the refusal and what it may do instead
func (o *Orchestrator) reject(req Request, rej *Rejection) (*Result, error) {
	res := &Result{
		Character: req.Character,
		Turn:      req.Turn,
		Narrative: rej.Message,
		Offers:    []Offer{},
		Choices:   []Choice{},
		Rejection: rej,
	}
	if req.Character == nil || req.Character.ID == "" {
		return res, nil
	}
	if err := o.checkCharacter(req.Character); err != nil {
		return nil, err
	}

	c := req.Character.Clone()
	c.Normalize()
	res.Offers = toOffers(o.picker.Collect(c, o.catalog, req.Turn))
	res.Choices = o.choices(c)
	sheet, err := actor.NewSheet(c)
	if err != nil {
		return nil, engerr.Wrap(err, "failed to build character sheet")
	}
	res.Sheet = sheet
	return res, nil
}

func (o *Orchestrator) choices(c *quest.Character) []Choice {
	actions := o.catalog.AvailableActions(c)
	out := make([]Choice, len(actions))
	for i, a := range actions {
		out[i] = Choice{ID: a.ID, Description: a.Description, CompletesQuest: a.CompletesQuest}
	}
	return out
}

func toOffers(qs []quest.Quest) []Offer {
	out := make([]Offer, len(qs))
	for i, q := range qs {
		out[i] = Offer{ID: q.ID, Name: q.DisplayName(), Description: q.Description, Tier: q.Tier, Risk: q.Risk}
	}
	return out
}

func deltaOrNil(d quest.Delta) *quest.Delta {
	if d.IsEmpty() {
		return nil
	}
	return &d
}
