package turn

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// ConsequencePrefix marks fired consequences in the narrative
const ConsequencePrefix = "CONSEQUENCE: "

// narrator renders beat text. A cases.Caser is not safe for concurrent use,
// so one narrator is created per turn.
type narrator struct {
	title cases.Caser
}

func newNarrator() *narrator {
	return &narrator{title: cases.Title(language.English)}
}

func (n *narrator) questName(q quest.Quest) string {
	if q.Name != "" {
		return q.Name
	}
	return n.title.String(q.ID)
}

func (n *narrator) opening(c *quest.Character) Beat {
	name := c.Name
	if name == "" {
		name = "traveller"
	}
	return Beat{
		Kind: BeatOpening,
		Text: fmt.Sprintf("Welcome, %s. Your story begins as a level %d %s.", n.title.String(name), c.Level, c.Tier()),
	}
}

func (n *narrator) action(a quest.Action) Beat {
	text := a.Description
	if text == "" {
		text = n.title.String(a.ID)
	}
	return Beat{Kind: BeatAction, Text: text + "."}
}

func (n *narrator) questStarted(q quest.Quest) Beat {
	return Beat{
		Kind:    BeatQuestStarted,
		Text:    fmt.Sprintf("%s quest started: %s.", n.title.String(q.Tier.String()), n.questName(q)),
		QuestID: q.ID,
	}
}

func (n *narrator) questCompleted(q quest.Quest) Beat {
	return Beat{
		Kind:    BeatQuestCompleted,
		Text:    fmt.Sprintf("Quest complete: %s.", n.questName(q)),
		QuestID: q.ID,
	}
}

func (n *narrator) levelUp(level int) Beat {
	return Beat{
		Kind: BeatLevelUp,
		Text: fmt.Sprintf("You have reached level %d (%s).", level, n.title.String(quest.TierForLevel(level).String())),
	}
}

func (n *narrator) consequence(ev quest.ScheduledEvent) Beat {
	text := ev.Description
	if text == "" {
		text = n.title.String(ev.EventID)
	}
	return Beat{Kind: BeatConsequence, Text: ConsequencePrefix + text, QuestID: ev.SourceQuest, EventID: ev.EventID}
}

func filler(text string) Beat {
	return Beat{Kind: BeatFiller, Text: text}
}
