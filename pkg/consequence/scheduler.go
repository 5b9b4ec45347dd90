// Package consequence schedules delayed events on a character and fires them
// when their turn comes.
//
// A scheduled event moves from pending to fired exactly once. The fired flag
// stored on the character is the only record of that, so calling Advance
// again for the same or a later turn never fires an event twice.
package consequence

import (
	"cmp"
	"fmt"
	"slices"

	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// InvalidOffsetError is returned when a consequence would not land in the future
type InvalidOffsetError struct {
	EventID string
	Offset  int
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("consequence %q has trigger offset %d, must be positive", e.EventID, e.Offset)
}

// Scheduler is stateless; all state lives on the character it is given
type Scheduler struct{}

func New() *Scheduler {
	return &Scheduler{}
}

// Schedule appends a pending event due at currentTurn + def.TriggerOffset
func (s *Scheduler) Schedule(c *quest.Character, def quest.ConsequenceThread, sourceQuest string, currentTurn int) (quest.ScheduledEvent, error) {
	if def.TriggerOffset <= 0 {
		return quest.ScheduledEvent{}, &InvalidOffsetError{EventID: def.EventID, Offset: def.TriggerOffset}
	}

	ev := quest.ScheduledEvent{
		Seq:         c.NextSeq,
		EventID:     def.EventID,
		Description: def.Description,
		SourceQuest: sourceQuest,
		CreatedTurn: currentTurn,
		DueTurn:     currentTurn + def.TriggerOffset,
		Effect:      def.Effect.Clone(),
	}
	c.NextSeq++
	c.Scheduled = append(c.Scheduled, ev)
	return ev, nil
}

// Advance fires every pending event due on or before newTurn, ordered by due
// turn and then creation order, and returns them. Duplicate sequence numbers
// are reported before anything is changed.
func (s *Scheduler) Advance(c *quest.Character, newTurn int) ([]quest.ScheduledEvent, error) {
	if err := CheckSequence(c); err != nil {
		return nil, err
	}

	var due []int
	for i, ev := range c.Scheduled {
		if !ev.Fired && ev.DueTurn <= newTurn {
			due = append(due, i)
		}
	}
	slices.SortFunc(due, func(a, b int) int {
		ea, eb := c.Scheduled[a], c.Scheduled[b]
		return cmp.Or(cmp.Compare(ea.DueTurn, eb.DueTurn), cmp.Compare(ea.Seq, eb.Seq))
	})

	fired := make([]quest.ScheduledEvent, 0, len(due))
	for _, i := range due {
		c.Scheduled[i].Fired = true
		c.Scheduled[i].FiredTurn = newTurn
		fired = append(fired, c.Scheduled[i])
	}
	return fired, nil
}

// CheckSequence reports an invariant error if two scheduled events share a
// sequence number or a sequence number is not below the character's counter
func CheckSequence(c *quest.Character) error {
	seen := make(map[int]struct{}, len(c.Scheduled))
	for _, ev := range c.Scheduled {
		if _, dup := seen[ev.Seq]; dup {
			return engerr.Invariantf("character %s has duplicate scheduled event seq %d", c.ID, ev.Seq)
		}
		if ev.Seq >= c.NextSeq {
			return engerr.Invariantf("character %s has scheduled event seq %d at or above next seq %d", c.ID, ev.Seq, c.NextSeq)
		}
		seen[ev.Seq] = struct{}{}
	}
	return nil
}

// Pending returns the events not yet fired, ordered as Advance would fire them
func Pending(c *quest.Character) []quest.ScheduledEvent {
	var out []quest.ScheduledEvent
	for _, ev := range c.Scheduled {
		if !ev.Fired {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b quest.ScheduledEvent) int {
		return cmp.Or(cmp.Compare(a.DueTurn, b.DueTurn), cmp.Compare(a.Seq, b.Seq))
	})
	return out
}

// NextDue returns the earliest due turn among pending events
func NextDue(c *quest.Character) (int, bool) {
	pending := Pending(c)
	if len(pending) == 0 {
		return 0, false
	}
	return pending[0].DueTurn, true
}
