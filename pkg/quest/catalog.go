package quest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

const (
	// DefaultOfferSize caps how many quests are offered per turn
	DefaultOfferSize = 4

	// DefaultXPPerLevel is the experience needed per character level
	DefaultXPPerLevel = 100

	defaultFiller = "The road stretches on, quiet for now."
)

// CatalogSpec is the on-disk form of the catalog
type CatalogSpec struct {
	Factions   []string `json:"factions,omitempty"`
	OfferSize  int      `json:"offer_size,omitempty"`
	XPPerLevel int      `json:"xp_per_level,omitempty"`
	Filler     []string `json:"filler,omitempty"`
	Quests     []Quest  `json:"quests"`
	Actions    []Action `json:"actions,omitempty"`
}

// Catalog is the immutable quest and action reference data. It is built once at
// start-up and shared read-only. Accessors return deep copies.
type Catalog struct {
	quests     map[string]Quest
	questIDs   []string
	actions    map[string]Action
	actionIDs  []string
	factions   map[string]struct{}
	offerSize  int
	xpPerLevel int
	filler     []string
}

// LoadCatalog reads and validates a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	cat, err := ParseCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes strict JSON and validates it
func ParseCatalog(r io.Reader) (*Catalog, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var spec CatalogSpec
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return NewCatalog(spec)
}

// NewCatalog validates spec and builds a catalog. Every problem found is reported.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	cat := &Catalog{
		quests:     make(map[string]Quest, len(spec.Quests)),
		actions:    make(map[string]Action, len(spec.Actions)),
		factions:   make(map[string]struct{}, len(spec.Factions)),
		offerSize:  spec.OfferSize,
		xpPerLevel: spec.XPPerLevel,
		filler:     slices.Clone(spec.Filler),
	}
	if cat.offerSize <= 0 {
		cat.offerSize = DefaultOfferSize
	}
	if cat.xpPerLevel <= 0 {
		cat.xpPerLevel = DefaultXPPerLevel
	}

	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	for _, f := range spec.Factions {
		cat.factions[f] = struct{}{}
	}

	for _, a := range spec.Actions {
		if a.ID == "" {
			fail("action with empty id")
			continue
		}
		if _, dup := cat.actions[a.ID]; dup {
			fail("duplicate action %q", a.ID)
			continue
		}
		if a.Delta != nil {
			for faction := range a.Delta.Reputation {
				if !cat.HasFaction(faction) {
					fail("action %q: unknown faction %q", a.ID, faction)
				}
			}
		}
		cat.actions[a.ID] = a.Clone()
	}

	for _, q := range spec.Quests {
		if q.ID == "" {
			fail("quest with empty id")
			continue
		}
		if _, dup := cat.quests[q.ID]; dup {
			fail("duplicate quest %q", q.ID)
			continue
		}
		cat.quests[q.ID] = q.Clone()
	}

	for id, q := range cat.quests {
		q, errs := cat.validateQuest(q)
		problems = append(problems, errs...)
		cat.quests[id] = q
	}

	if len(problems) > 0 {
		slices.SortFunc(problems, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(problems...))
	}

	cat.questIDs = slices.Sorted(maps.Keys(cat.quests))
	cat.actionIDs = slices.Sorted(maps.Keys(cat.actions))
	return cat, nil
}

func (cat *Catalog) validateQuest(q Quest) (Quest, []error) {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("quest %q: "+format, append([]any{q.ID}, args...)...))
	}

	if q.Levels.Min < 1 {
		fail("level_range.min must be at least 1")
	}
	if q.Levels.Max != 0 && q.Levels.Max < q.Levels.Min {
		fail("level_range.max %d is below min %d", q.Levels.Max, q.Levels.Min)
	}

	derived := TierForLevel(q.Levels.Min)
	if q.Tier != 0 && q.Tier != derived {
		fail("tier %s does not match level_range (expected %s)", q.Tier, derived)
	}
	q.Tier = derived

	if !q.Risk.Valid() {
		fail("unknown risk %q", q.Risk)
	}

	for _, pre := range q.Prerequisites {
		if pre == q.ID {
			fail("lists itself as a prerequisite")
		} else if _, ok := cat.quests[pre]; !ok {
			fail("unknown prerequisite %q", pre)
		}
	}

	if q.Continues != "" {
		if q.Continues == q.ID {
			fail("continues itself")
		} else if _, ok := cat.quests[q.Continues]; !ok {
			fail("continues unknown quest %q", q.Continues)
		}
	}

	for name := range q.Requirements {
		req, err := LookupRequirement(name)
		if err != nil {
			fail("%v", err)
			continue
		}
		if req.Faction != "" && !cat.HasFaction(req.Faction) {
			fail("requirement %q names unknown faction %q", name, req.Faction)
		}
	}

	for _, id := range q.Actions {
		if _, ok := cat.actions[id]; !ok {
			fail("unknown action %q", id)
		}
	}

	if q.Reward != nil {
		for faction := range q.Reward.Reputation {
			if !cat.HasFaction(faction) {
				fail("reward names unknown faction %q", faction)
			}
		}
	}

	if c := q.Consequence; c != nil {
		if c.TriggerOffset <= 0 {
			fail("consequence %q trigger_offset must be positive, got %d", c.EventID, c.TriggerOffset)
		}
		if c.EventID == "" {
			fail("consequence is missing event_id")
		}
	}

	return q, problems
}

func (cat *Catalog) Quest(id string) (Quest, bool) {
	q, ok := cat.quests[id]
	return q.Clone(), ok
}

// Quests returns every quest ordered by ID
func (cat *Catalog) Quests() []Quest {
	out := make([]Quest, 0, len(cat.questIDs))
	for _, id := range cat.questIDs {
		out = append(out, cat.quests[id].Clone())
	}
	return out
}

func (cat *Catalog) Action(id string) (Action, bool) {
	a, ok := cat.actions[id]
	return a.Clone(), ok
}

// AvailableActions returns the global actions plus those of the active quest, ordered by ID
func (cat *Catalog) AvailableActions(c *Character) []Action {
	var questActions []string
	if id, ok := c.ActiveQuestID(); ok {
		if q, ok := cat.quests[id]; ok {
			questActions = q.Actions
		}
	}

	var out []Action
	for _, id := range cat.actionIDs {
		a := cat.actions[id]
		if a.Global || slices.Contains(questActions, id) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (cat *Catalog) HasFaction(name string) bool {
	_, ok := cat.factions[name]
	return ok
}

func (cat *Catalog) OfferSize() int { return cat.offerSize }

func (cat *Catalog) XPPerLevel() int { return cat.xpPerLevel }

// Filler returns the default narrative beat for a turn with nothing on offer
func (cat *Catalog) Filler(turn int) string {
	if len(cat.filler) == 0 {
		return defaultFiller
	}
	n := len(cat.filler)
	return cat.filler[((turn%n)+n)%n]
}
