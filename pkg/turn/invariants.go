package turn

import (
	"github.com/jwebster45206/quest-engine/pkg/consequence"
	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// checkCharacter verifies the invariants every character snapshot must hold
func (o *Orchestrator) checkCharacter(c *quest.Character) error {
	if c.Level < 1 {
		return engerr.Invariantf("character %s has level %d", c.ID, c.Level)
	}
	if c.Experience < 0 {
		return engerr.Invariantf("character %s has negative experience %d", c.ID, c.Experience)
	}
	if id, ok := c.ActiveQuestID(); ok {
		if id == "" {
			return engerr.Invariantf("character %s has an active quest with no id", c.ID)
		}
		if c.HasCompleted(id) {
			return engerr.Invariantf("character %s has active quest %q that is already completed", c.ID, id)
		}
		if _, ok := o.catalog.Quest(id); !ok {
			return engerr.Invariantf("character %s has unknown active quest %q", c.ID, id)
		}
	}
	return consequence.CheckSequence(c)
}

// checkTransition verifies what a turn may and may not change
func (o *Orchestrator) checkTransition(before, after *quest.Character, fired []quest.ScheduledEvent) error {
	if err := o.checkCharacter(after); err != nil {
		return err
	}

	for id := range before.Completed {
		if !after.HasCompleted(id) {
			return engerr.Invariantf("character %s lost completed quest %q", after.ID, id)
		}
	}

	alreadyFired := make(map[int]bool, len(before.Scheduled))
	for _, ev := range before.Scheduled {
		alreadyFired[ev.Seq] = ev.Fired
	}
	returned := make(map[int]struct{}, len(fired))
	for _, ev := range fired {
		if alreadyFired[ev.Seq] {
			return engerr.Invariantf("consequence %q (seq %d) fired twice", ev.EventID, ev.Seq)
		}
		if _, dup := returned[ev.Seq]; dup {
			return engerr.Invariantf("consequence %q (seq %d) returned twice", ev.EventID, ev.Seq)
		}
		returned[ev.Seq] = struct{}{}
	}
	return nil
}
