package actor

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

const (
	baseAC = 10

	// vitals below this are reported as a condition with a combat penalty
	lowVitalThreshold = 25
	lowVitalPenalty   = -2
)

// Sheet is the character-sheet snapshot handed to the presentation layer.
// The d20 actor carries the combat profile; the character carries the rest.
type Sheet struct {
	Character *quest.Character
	Actor     *d20.Actor // built from Character by NewSheet
}

// Conditions derives combat modifiers from depleted vitals
func Conditions(c *quest.Character) map[string]int {
	mods := make(map[string]int)
	if c.Vitals.Stamina.Current < lowVitalThreshold {
		mods["exhausted"] = lowVitalPenalty
	}
	if c.Vitals.Sanity.Current < lowVitalThreshold {
		mods["shaken"] = lowVitalPenalty
	}
	if c.Vitals.Mana.Current == 0 {
		mods["drained"] = lowVitalPenalty
	}
	return mods
}

// Attributes flattens the character's numeric stats. Reputation is keyed
// "reputation:<faction>".
func Attributes(c *quest.Character) map[string]int {
	attrs := map[string]int{
		"level":      c.Level,
		"experience": c.Experience,
		"karma":      c.Karma,
		"mana":       c.Vitals.Mana.Current,
		"stamina":    c.Vitals.Stamina.Current,
		"sanity":     c.Vitals.Sanity.Current,
	}
	for faction, score := range c.Reputation {
		attrs["reputation:"+faction] = score
	}
	return attrs
}

// NewSheet builds a sheet and its d20 actor from a character snapshot
func NewSheet(c *quest.Character) (*Sheet, error) {
	if c == nil {
		return nil, fmt.Errorf("character cannot be nil")
	}

	health := c.Vitals.Health
	actor, err := d20.NewActor(c.ID).
		WithHP(health.Max).
		WithAC(baseAC + int(c.Tier())).
		WithAttributes(Attributes(c)).
		WithCombatModifiers(Conditions(c)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	// Set current HP if different from max
	if health.Current != health.Max && health.Current > 0 {
		if err := actor.SetHP(health.Current); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	return &Sheet{Character: c, Actor: actor}, nil
}

// HP is the actor's current hit points, or 0 when the character is down
func (s *Sheet) HP() int {
	if s.Character.Vitals.Health.Current <= 0 {
		return 0
	}
	return s.Actor.HP()
}

type sheetResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Level       int            `json:"level"`
	Tier        string         `json:"tier"`
	Experience  int            `json:"experience"`
	HP          int            `json:"hp"`
	MaxHP       int            `json:"max_hp"`
	AC          int            `json:"ac"`
	Vitals      quest.Vitals   `json:"vitals"`
	Karma       int            `json:"karma"`
	Reputation  map[string]int `json:"reputation,omitempty"`
	Conditions  map[string]int `json:"conditions,omitempty"`
	ActiveQuest string         `json:"active_quest,omitempty"`
	Completed   []string       `json:"completed,omitempty"`
	Pending     int            `json:"pending_consequences"`
}

// MarshalJSON reads the combat profile from the actor and the rest from the character
func (s *Sheet) MarshalJSON() ([]byte, error) {
	if s == nil || s.Character == nil {
		return []byte("null"), nil
	}
	c := s.Character

	resp := sheetResponse{
		ID:         c.ID,
		Name:       c.Name,
		Level:      c.Level,
		Tier:       c.Tier().String(),
		Experience: c.Experience,
		HP:         c.Vitals.Health.Current,
		MaxHP:      c.Vitals.Health.Max,
		Vitals:     c.Vitals,
		Karma:      c.Karma,
		Reputation: maps.Clone(c.Reputation),
		Completed:  c.CompletedIDs(),
	}
	if id, ok := c.ActiveQuestID(); ok {
		resp.ActiveQuest = id
	}
	for _, ev := range c.Scheduled {
		if !ev.Fired {
			resp.Pending++
		}
	}

	if s.Actor != nil {
		resp.HP = s.HP()
		resp.MaxHP = s.Actor.MaxHP()
		resp.AC = s.Actor.AC()
		resp.Conditions = make(map[string]int)
		for _, mod := range s.Actor.GetCombatModifiers() {
			resp.Conditions[mod.Reason] = mod.Value
		}
	}

	return json.Marshal(resp)
}

// ConditionNames returns the active condition names in sorted order
func (s *Sheet) ConditionNames() []string {
	var names []string
	for _, mod := range s.Actor.GetCombatModifiers() {
		names = append(names, mod.Reason)
	}
	slices.Sort(names)
	return names
}
