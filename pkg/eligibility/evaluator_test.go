package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/quest/questtest"
)

func mustQuest(t *testing.T, cat *quest.Catalog, id string) quest.Quest {
	t.Helper()
	q, ok := cat.Quest(id)
	require.True(t, ok, "quest %s", id)
	return q
}

func TestEvaluate_ShadowThroneBlocked(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 5

	res := Evaluate(c, mustQuest(t, cat, "shadow_throne"))

	assert.False(t, res.Eligible)
	assert.Equal(t, []ReasonCode{LevelTooLow, MissingPrerequisite, RequirementUnmet}, res.Codes())
	assert.Equal(t, "guild_lieutenant", res.Reasons[1].QuestID)

	karma := res.Reasons[2]
	assert.Equal(t, "karma_at_most", karma.Requirement)
	assert.Equal(t, -100, karma.Threshold)
	assert.Equal(t, 0, karma.Actual)
}

func TestEvaluate_ShadowThroneEligible(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 16
	c.Karma = -100
	c.Completed["guild_lieutenant"] = 40

	res := Evaluate(c, mustQuest(t, cat, "shadow_throne"))
	assert.True(t, res.Eligible, res.Summary())
	assert.Empty(t, res.Reasons)
}

func TestEvaluate_LevelBounds(t *testing.T) {
	cat := questtest.Catalog()
	errand := mustQuest(t, cat, "errand")

	tests := []struct {
		level int
		want  []ReasonCode
	}{
		{1, nil},
		{3, nil},
		{4, []ReasonCode{LevelTooHigh}},
	}
	for _, tt := range tests {
		c := quest.NewCharacter("c1", "Vel")
		c.Level = tt.level
		res := Evaluate(c, errand)
		if tt.want == nil {
			assert.True(t, res.Eligible, "level %d", tt.level)
			continue
		}
		assert.Equal(t, tt.want, res.Codes(), "level %d", tt.level)
	}
}

func TestEvaluate_LoweringLevelFlipsEligibility(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 16
	c.Karma = -150
	c.Completed["guild_lieutenant"] = 3

	for _, q := range cat.Quests() {
		c := c.Clone()
		c.Level = max(q.Levels.Min, 1)
		if q.Levels.Max != 0 && c.Level > q.Levels.Max {
			continue
		}
		before := Evaluate(c, q)
		if !before.Eligible {
			continue
		}
		if q.Levels.Min <= 1 {
			continue
		}

		c.Level = q.Levels.Min - 1
		after := Evaluate(c, q)
		assert.False(t, after.Eligible, q.ID)
		assert.True(t, after.Has(LevelTooLow), q.ID)
	}
}

func TestEvaluate_EligibleImpliesEveryCheck(t *testing.T) {
	cat := questtest.Catalog()

	characters := []*quest.Character{quest.NewCharacter("a", "")}
	for level := 1; level <= 20; level += 3 {
		c := quest.NewCharacter("b", "")
		c.Level = level
		c.Karma = -200 + level*20
		c.Reputation["guild"] = level * 3
		if level > 10 {
			c.Completed["guild_lieutenant"] = level
		}
		if level%2 == 0 {
			c.Active = &quest.ActiveQuest{QuestID: "trade_war"}
		}
		characters = append(characters, c)
	}

	for _, c := range characters {
		for _, q := range cat.Quests() {
			res := Evaluate(c, q)
			if !res.Eligible {
				require.NotEmpty(t, res.Reasons)
				continue
			}

			assert.True(t, q.Levels.Contains(c.Level), q.ID)
			for _, pre := range q.Prerequisites {
				assert.True(t, c.HasCompleted(pre), q.ID)
			}
			for name, threshold := range q.Requirements {
				req, err := quest.LookupRequirement(name)
				require.NoError(t, err)
				assert.True(t, req.Comparison.Satisfied(req.Value(c), threshold), q.ID)
			}
			if active, ok := c.ActiveQuestID(); ok {
				assert.Equal(t, active, q.Continues, q.ID)
			}
			if q.Continues != "" {
				active, _ := c.ActiveQuestID()
				assert.True(t, active == q.Continues || c.HasCompleted(q.Continues), q.ID)
			}
		}
	}
}

func TestEvaluate_ActiveQuest(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 5
	c.Active = &quest.ActiveQuest{QuestID: "trade_war", StartedTurn: 2}

	t.Run("other quest blocked", func(t *testing.T) {
		c := c.Clone()
		c.Level = 2
		c.Active = &quest.ActiveQuest{QuestID: "trade_war"}
		res := Evaluate(c, mustQuest(t, cat, "errand"))
		assert.Equal(t, []ReasonCode{QuestActive}, res.Codes())
		assert.Equal(t, "trade_war", res.Reasons[0].QuestID)
	})

	t.Run("continuation allowed", func(t *testing.T) {
		res := Evaluate(c, mustQuest(t, cat, "trade_war_aftermath"))
		assert.True(t, res.Eligible, res.Summary())
	})

	t.Run("same quest", func(t *testing.T) {
		res := Evaluate(c, mustQuest(t, cat, "trade_war"))
		assert.Equal(t, []ReasonCode{AlreadyActive}, res.Codes())
	})
}

func TestEvaluate_ContinuationNeedsPredecessor(t *testing.T) {
	cat := questtest.Catalog()
	aftermath := mustQuest(t, cat, "trade_war_aftermath")
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 5

	res := Evaluate(c, aftermath)
	assert.Equal(t, []ReasonCode{MissingPredecessor}, res.Codes())
	assert.Equal(t, "trade_war", res.Reasons[0].QuestID)

	c.Completed["trade_war"] = 3
	res = Evaluate(c, aftermath)
	assert.True(t, res.Eligible, res.Summary())
}

func TestEvaluate_AlreadyCompleted(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Completed["errand"] = 4

	res := Evaluate(c, mustQuest(t, cat, "errand"))
	assert.Equal(t, []ReasonCode{AlreadyCompleted}, res.Codes())
}

func TestEvaluate_RequirementOrderAndZeroThreshold(t *testing.T) {
	q := quest.Quest{
		ID:     "oath",
		Levels: quest.LevelRange{Min: 1},
		Risk:   quest.RiskCalm,
		Requirements: map[string]int{
			"sanity_at_least": 50,
			"karma_at_most":   0,
			"karma_at_least":  0,
		},
	}
	c := quest.NewCharacter("c1", "Vel")
	c.Karma = 3
	c.Vitals.Sanity.Current = 10

	res := Evaluate(c, q)
	require.Len(t, res.Reasons, 2)
	assert.Equal(t, "karma_at_most", res.Reasons[0].Requirement)
	assert.Equal(t, "sanity_at_least", res.Reasons[1].Requirement)
	assert.Equal(t, 10, res.Reasons[1].Actual)
}

func TestEvaluate_UnknownRequirementFailsClosed(t *testing.T) {
	q := quest.Quest{
		ID:           "odd",
		Levels:       quest.LevelRange{Min: 1},
		Requirements: map[string]int{"charisma_at_least": 1},
	}
	res := Evaluate(quest.NewCharacter("c1", "Vel"), q)
	assert.False(t, res.Eligible)
	assert.Equal(t, []ReasonCode{RequirementUnmet}, res.Codes())
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	cat := questtest.Catalog()
	c := quest.NewCharacter("c1", "Vel")
	c.Level = 9
	c.Reputation["guild"] = 5
	before := c.Clone()

	for _, q := range cat.Quests() {
		Evaluate(c, q)
	}
	assert.Equal(t, before, c)
}
