package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/quest/questtest"
)

func specJSON(t *testing.T, spec quest.CatalogSpec) []byte {
	t.Helper()
	data, err := json.Marshal(spec)
	require.NoError(t, err)
	return data
}

func TestValidate_FixtureCatalogIsValid(t *testing.T) {
	v := &CatalogValidator{}
	assert.NoError(t, v.validate(specJSON(t, questtest.Spec())))
}

func TestValidate_Lints(t *testing.T) {
	spec := questtest.Spec()
	spec.Quests[0].ID = "Errand"
	spec.Quests[0].Name = ""
	spec.Quests = append(spec.Quests,
		quest.Quest{ID: "chicken", Name: "Chicken", Levels: quest.LevelRange{Min: 1}, Risk: quest.RiskCalm, Prerequisites: []string{"egg"}},
		quest.Quest{ID: "egg", Name: "Egg", Levels: quest.LevelRange{Min: 1}, Risk: quest.RiskCalm, Prerequisites: []string{"chicken"}},
		quest.Quest{ID: "stuck", Name: "Stuck", Levels: quest.LevelRange{Min: 1}, Risk: quest.RiskCalm, Actions: []string{"haggle"}},
	)

	v := &CatalogValidator{}
	err := v.validate(specJSON(t, spec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quest ID 'Errand' should be lowercase snake_case")
	assert.Contains(t, err.Error(), "quest 'Errand' has no name")
	assert.Contains(t, err.Error(), "quest 'chicken' can never be offered")
	assert.Contains(t, err.Error(), "quest 'egg' can never be offered")
	assert.Contains(t, err.Error(), "quest 'stuck' has actions but none completes it")
	assert.NotContains(t, err.Error(), "'trade_war' has actions")
}

func TestValidate_StructuralErrorsComeFromLoading(t *testing.T) {
	v := &CatalogValidator{}

	err := v.validate([]byte(`{"quests": [`))
	assert.ErrorContains(t, err, "invalid JSON")

	err = v.validate([]byte(`{"quests": [], "bonus": 1}`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestValidateFile_Filename(t *testing.T) {
	dir := t.TempDir()
	v := &CatalogValidator{}

	bad := filepath.Join(dir, "My-Catalog.json")
	require.NoError(t, os.WriteFile(bad, specJSON(t, questtest.Spec()), 0o644))
	assert.ErrorContains(t, v.validateFile(bad), "snake_case")

	assert.ErrorContains(t, v.validateFile(filepath.Join(dir, "catalog.yaml")), ".json extension")

	good := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(good, specJSON(t, questtest.Spec()), 0o644))
	assert.NoError(t, v.validateFile(good))
}
