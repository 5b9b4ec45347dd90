package quest

import (
	"maps"
	"slices"
)

// DefaultVitalMax is the max used for a vital whose max is unset
const DefaultVitalMax = 100

// Vital is a clamped resource such as health or mana
type Vital struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Add applies n and clamps the result to [0, Max]
func (v Vital) Add(n int) Vital {
	v.Current = clamp(v.Current+n, 0, v.Max)
	return v
}

func (v Vital) normalized() Vital {
	if v.Max <= 0 {
		v.Max = DefaultVitalMax
	}
	v.Current = clamp(v.Current, 0, v.Max)
	return v
}

// Vitals are the four clamped stats of a character
type Vitals struct {
	Health  Vital `json:"health"`
	Mana    Vital `json:"mana"`
	Stamina Vital `json:"stamina"`
	Sanity  Vital `json:"sanity"`
}

// FullVitals returns vitals at DefaultVitalMax
func FullVitals() Vitals {
	full := Vital{Current: DefaultVitalMax, Max: DefaultVitalMax}
	return Vitals{Health: full, Mana: full, Stamina: full, Sanity: full}
}

// ActiveQuest is the single quest a character is working on
type ActiveQuest struct {
	QuestID     string `json:"quest_id"`
	StartedTurn int    `json:"started_turn"`
}

// Character is the per-session player state. It is a value object: the
// engine receives it, works on a clone and returns the updated copy.
type Character struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Level      int            `json:"level"`
	Experience int            `json:"experience"`
	Reputation map[string]int `json:"reputation,omitempty"`
	Karma      int            `json:"karma"`

	// Completed maps quest ID to the turn it was completed on. Entries are never removed.
	Completed map[string]int `json:"completed,omitempty"`

	// Active is nil when no quest is in progress
	Active *ActiveQuest `json:"active,omitempty"`

	Vitals    Vitals           `json:"vitals"`
	Scheduled []ScheduledEvent `json:"scheduled,omitempty"`
	NextSeq   int              `json:"next_seq"`
}

// NewCharacter returns a level 1 character with full vitals
func NewCharacter(id, name string) *Character {
	return &Character{
		ID:         id,
		Name:       name,
		Level:      1,
		Reputation: make(map[string]int),
		Completed:  make(map[string]int),
		Vitals:     FullVitals(),
	}
}

// Clone returns a deep copy of the character
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	out := *c
	out.Reputation = maps.Clone(c.Reputation)
	out.Completed = maps.Clone(c.Completed)
	if c.Active != nil {
		active := *c.Active
		out.Active = &active
	}
	if c.Scheduled != nil {
		out.Scheduled = make([]ScheduledEvent, len(c.Scheduled))
		for i, ev := range c.Scheduled {
			out.Scheduled[i] = ev.clone()
		}
	}
	return &out
}

// Normalize fills nil maps and clamps vitals. Call on snapshots arriving from storage.
func (c *Character) Normalize() {
	if c.Reputation == nil {
		c.Reputation = make(map[string]int)
	}
	if c.Completed == nil {
		c.Completed = make(map[string]int)
	}
	if c.Level < 1 {
		c.Level = 1
	}
	if c.Experience < 0 {
		c.Experience = 0
	}
	c.Vitals.Health = c.Vitals.Health.normalized()
	c.Vitals.Mana = c.Vitals.Mana.normalized()
	c.Vitals.Stamina = c.Vitals.Stamina.normalized()
	c.Vitals.Sanity = c.Vitals.Sanity.normalized()
}

func (c *Character) Tier() Tier {
	return TierForLevel(c.Level)
}

func (c *Character) HasCompleted(questID string) bool {
	_, ok := c.Completed[questID]
	return ok
}

func (c *Character) ActiveQuestID() (string, bool) {
	if c.Active == nil {
		return "", false
	}
	return c.Active.QuestID, true
}

// CompletedIDs returns the completed-quest set in sorted order
func (c *Character) CompletedIDs() []string {
	return slices.Sorted(maps.Keys(c.Completed))
}

// Delta is a set of stat changes declared by an action, quest reward or consequence
type Delta struct {
	Health     int            `json:"health,omitempty"`
	Mana       int            `json:"mana,omitempty"`
	Stamina    int            `json:"stamina,omitempty"`
	Sanity     int            `json:"sanity,omitempty"`
	Karma      int            `json:"karma,omitempty"`
	Experience int            `json:"experience,omitempty"`
	Reputation map[string]int `json:"reputation,omitempty"`
}

// Clone returns a deep copy of d
func (d *Delta) Clone() *Delta {
	if d == nil {
		return nil
	}
	out := *d
	out.Reputation = maps.Clone(d.Reputation)
	return &out
}

// IsEmpty reports whether the delta changes nothing
func (d *Delta) IsEmpty() bool {
	if d == nil {
		return true
	}
	for _, v := range d.Reputation {
		if v != 0 {
			return false
		}
	}
	return d.Health == 0 && d.Mana == 0 && d.Stamina == 0 && d.Sanity == 0 &&
		d.Karma == 0 && d.Experience == 0
}

// Apply adds d to the character, clamping vitals to [0, max] and experience at 0.
// It returns the delta that was actually applied after clamping.
func (c *Character) Apply(d *Delta) Delta {
	var applied Delta
	if d == nil {
		return applied
	}

	apply := func(v *Vital, n int) int {
		before := v.Current
		*v = v.Add(n)
		return v.Current - before
	}
	applied.Health = apply(&c.Vitals.Health, d.Health)
	applied.Mana = apply(&c.Vitals.Mana, d.Mana)
	applied.Stamina = apply(&c.Vitals.Stamina, d.Stamina)
	applied.Sanity = apply(&c.Vitals.Sanity, d.Sanity)

	c.Karma += d.Karma
	applied.Karma = d.Karma

	before := c.Experience
	c.Experience = max(c.Experience+d.Experience, 0)
	applied.Experience = c.Experience - before

	for faction, n := range d.Reputation {
		if n == 0 {
			continue
		}
		if c.Reputation == nil {
			c.Reputation = make(map[string]int)
		}
		c.Reputation[faction] += n
		if applied.Reputation == nil {
			applied.Reputation = make(map[string]int)
		}
		applied.Reputation[faction] = n
	}
	return applied
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
