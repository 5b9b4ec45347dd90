// Package picker selects the quests offered to a character on a turn.
package picker

import (
	"cmp"
	"iter"
	"slices"

	"github.com/jwebster45206/quest-engine/pkg/eligibility"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// Picker orders eligible quests and caps the offer. The zero value uses the
// catalog's offer size.
type Picker struct {
	// Size overrides the catalog's offer size when positive
	Size int
}

// New returns a picker capped at size, or at the catalog's offer size when size <= 0
func New(size int) *Picker {
	return &Picker{Size: size}
}

type candidate struct {
	quest    quest.Quest
	distance int // tier distance from the character
	age      int // turns since the prerequisites were satisfied
}

// Offer returns the quests c may start on turn, best first. The sequence is
// recomputed from its inputs every time it is ranged over and holds no state
// between iterations.
//
// Order: tier closest to the character's tier (lower tier on ties), then most
// recently unlocked, then quest ID.
func (p *Picker) Offer(c *quest.Character, cat *quest.Catalog, turn int) iter.Seq[quest.Quest] {
	return func(yield func(quest.Quest) bool) {
		for _, cand := range p.rank(c, cat, turn) {
			if !yield(cand.quest) {
				return
			}
		}
	}
}

// Collect drains Offer into a slice
func (p *Picker) Collect(c *quest.Character, cat *quest.Catalog, turn int) []quest.Quest {
	return slices.Collect(p.Offer(c, cat, turn))
}

// Contains reports whether questID is in the current offer
func (p *Picker) Contains(c *quest.Character, cat *quest.Catalog, turn int, questID string) bool {
	for q := range p.Offer(c, cat, turn) {
		if q.ID == questID {
			return true
		}
	}
	return false
}

func (p *Picker) limit(cat *quest.Catalog) int {
	if p != nil && p.Size > 0 {
		return p.Size
	}
	return cat.OfferSize()
}

func (p *Picker) rank(c *quest.Character, cat *quest.Catalog, turn int) []candidate {
	tier := c.Tier()

	var cands []candidate
	for _, q := range cat.Quests() {
		if !eligibility.Evaluate(c, q).Eligible {
			continue
		}
		cands = append(cands, candidate{
			quest:    q,
			distance: abs(int(q.Tier) - int(tier)),
			age:      turn - unlockTurn(c, q),
		})
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(a.distance, b.distance),
			cmp.Compare(a.quest.Tier, b.quest.Tier),
			cmp.Compare(a.age, b.age),
			cmp.Compare(a.quest.ID, b.quest.ID),
		)
	})

	if n := p.limit(cat); len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// unlockTurn is the turn the last prerequisite was completed, or -1 for a
// quest with no prerequisites
func unlockTurn(c *quest.Character, q quest.Quest) int {
	unlocked := -1
	for _, id := range q.Prerequisites {
		if t, ok := c.Completed[id]; ok {
			unlocked = max(unlocked, t)
		}
	}
	return unlocked
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
