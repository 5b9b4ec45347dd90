package quest

import (
	"fmt"
	"strings"
)

// Comparison is how a requirement threshold is compared to a stat
type Comparison string

const (
	AtLeast Comparison = "at_least" // stat >= threshold
	AtMost  Comparison = "at_most"  // stat <= threshold
)

// Satisfied reports whether actual meets threshold under c
func (c Comparison) Satisfied(actual, threshold int) bool {
	switch c {
	case AtLeast:
		return actual >= threshold
	case AtMost:
		return actual <= threshold
	}
	return false
}

func (c Comparison) Symbol() string {
	if c == AtMost {
		return "<="
	}
	return ">="
}

// Requirement is a resolved entry of the requirement table
type Requirement struct {
	Name       string
	Comparison Comparison
	Faction    string // set for reputation requirements
	stat       func(*Character) int
}

// Value reads the stat this requirement gates on
func (r Requirement) Value(c *Character) int {
	return r.stat(c)
}

const (
	reputationAtLeastPrefix = "reputation_at_least:"
	reputationAtMostPrefix  = "reputation_at_most:"
)

// requirementTable is the closed set of plain requirement names.
// Reputation requirements are parameterized by faction and resolved in LookupRequirement.
var requirementTable = map[string]Requirement{
	"karma_at_least":      {Comparison: AtLeast, stat: func(c *Character) int { return c.Karma }},
	"karma_at_most":       {Comparison: AtMost, stat: func(c *Character) int { return c.Karma }},
	"experience_at_least": {Comparison: AtLeast, stat: func(c *Character) int { return c.Experience }},
	"health_at_least":     {Comparison: AtLeast, stat: func(c *Character) int { return c.Vitals.Health.Current }},
	"mana_at_least":       {Comparison: AtLeast, stat: func(c *Character) int { return c.Vitals.Mana.Current }},
	"stamina_at_least":    {Comparison: AtLeast, stat: func(c *Character) int { return c.Vitals.Stamina.Current }},
	"sanity_at_least":     {Comparison: AtLeast, stat: func(c *Character) int { return c.Vitals.Sanity.Current }},
}

// LookupRequirement resolves a requirement name against the closed table.
// Unknown names return an error; they are never silently treated as satisfied.
func LookupRequirement(name string) (Requirement, error) {
	if req, ok := requirementTable[name]; ok {
		req.Name = name
		return req, nil
	}

	var comparison Comparison
	var faction string
	switch {
	case strings.HasPrefix(name, reputationAtLeastPrefix):
		comparison = AtLeast
		faction = strings.TrimPrefix(name, reputationAtLeastPrefix)
	case strings.HasPrefix(name, reputationAtMostPrefix):
		comparison = AtMost
		faction = strings.TrimPrefix(name, reputationAtMostPrefix)
	default:
		return Requirement{}, fmt.Errorf("unknown requirement %q", name)
	}
	if faction == "" {
		return Requirement{}, fmt.Errorf("requirement %q is missing a faction", name)
	}

	return Requirement{
		Name:       name,
		Comparison: comparison,
		Faction:    faction,
		stat:       func(c *Character) int { return c.Reputation[faction] },
	}, nil
}
