// Package questtest provides a small, fixed catalog for tests
package questtest

import "github.com/jwebster45206/quest-engine/pkg/quest"

// Spec returns a fresh catalog spec. Callers may modify it before building.
func Spec() quest.CatalogSpec {
	return quest.CatalogSpec{
		Factions: []string{"guild", "merchants", "thieves"},
		Filler:   []string{"The road is quiet.", "Rain drums on the inn roof."},
		Actions: []quest.Action{
			{ID: "rest", Description: "Rest at the inn", Global: true, Delta: &quest.Delta{Health: 10, Stamina: 10}},
			{ID: "explore", Description: "Explore the outskirts", Global: true, Delta: &quest.Delta{Experience: 10, Stamina: -5}},
			{ID: "report_back", Description: "Report back to the quartermaster", CompletesQuest: true, Delta: &quest.Delta{Experience: 20}},
			{ID: "haggle", Description: "Haggle with the cartel", Delta: &quest.Delta{Reputation: map[string]int{"merchants": 5}}},
			{ID: "strike_deal", Description: "Strike the deal", CompletesQuest: true, Delta: &quest.Delta{Karma: -5}},
			{ID: "settle_accounts", Description: "Settle the accounts", CompletesQuest: true},
		},
		Quests: []quest.Quest{
			{
				ID: "errand", Name: "The Quartermaster's Errand",
				Levels: quest.LevelRange{Min: 1, Max: 3}, Risk: quest.RiskCalm,
				Actions: []string{"report_back"},
				Reward:  &quest.Delta{Experience: 60},
			},
			{
				ID: "trade_war", Name: "Trade War",
				Levels: quest.LevelRange{Min: 4, Max: 9}, Risk: quest.RiskMystery,
				Actions: []string{"haggle", "strike_deal"},
				Reward:  &quest.Delta{Experience: 50, Reputation: map[string]int{"merchants": 10}},
				Consequence: &quest.ConsequenceThread{
					TriggerOffset: 5,
					EventID:       "rival_ambush",
					Description:   "Agents of the rival cartel ambush you on the trade road.",
					Effect:        &quest.Delta{Health: -20, Reputation: map[string]int{"merchants": -5}},
				},
			},
			{
				ID: "trade_war_aftermath", Name: "Aftermath of the Trade War",
				Levels: quest.LevelRange{Min: 4, Max: 9}, Risk: quest.RiskCalm,
				Continues: "trade_war",
				Actions:   []string{"settle_accounts"},
			},
			{
				ID: "guild_lieutenant", Name: "Guild Lieutenant",
				Levels: quest.LevelRange{Min: 8, Max: 15}, Risk: quest.RiskCombat,
				Requirements: map[string]int{"reputation_at_least:guild": 20},
			},
			{
				ID: "shadow_throne", Name: "Shadow Throne",
				Levels: quest.LevelRange{Min: 16}, Risk: quest.RiskCombat,
				Prerequisites: []string{"guild_lieutenant"},
				Requirements:  map[string]int{"karma_at_most": -100},
			},
		},
	}
}

// Catalog builds the catalog from Spec and panics if it is invalid
func Catalog() *quest.Catalog {
	return MustBuild(Spec())
}

// MustBuild builds a catalog and panics if it is invalid
func MustBuild(spec quest.CatalogSpec) *quest.Catalog {
	cat, err := quest.NewCatalog(spec)
	if err != nil {
		panic(err)
	}
	return cat
}
