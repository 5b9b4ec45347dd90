package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <catalog.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &CatalogValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Catalog file is valid!")
}

// CatalogValidator lints a catalog beyond what loading it checks
type CatalogValidator struct {
	errors []string
}

func (v *CatalogValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("catalog file must have .json extension: %s", baseName)
	}
	if !isValidID(strings.TrimSuffix(baseName, ".json")) {
		return fmt.Errorf("catalog filename '%s' must be lowercase snake_case", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return v.validate(data)
}

func (v *CatalogValidator) validate(data []byte) error {
	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("catalog contains invalid JSON")
	}

	// structural problems: unknown fields, references, thresholds
	if _, err := quest.ParseCatalog(bytes.NewReader(data)); err != nil {
		return err
	}

	var spec quest.CatalogSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	v.validateSpec(&spec)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *CatalogValidator) validateSpec(spec *quest.CatalogSpec) {
	for _, f := range spec.Factions {
		v.validateIDFormat("faction", f)
	}
	for _, a := range spec.Actions {
		v.validateIDFormat("action ID", a.ID)
	}
	for _, q := range spec.Quests {
		v.validateIDFormat("quest ID", q.ID)
		if q.Name == "" {
			v.addError(fmt.Sprintf("quest '%s' has no name", q.ID))
		}
		if q.Consequence != nil {
			v.validateIDFormat("consequence event ID", q.Consequence.EventID)
		}
		if len(q.Actions) > 0 && !slices.ContainsFunc(q.Actions, func(id string) bool { return completes(spec, id) }) {
			v.addError(fmt.Sprintf("quest '%s' has actions but none completes it", q.ID))
		}
	}
	for _, id := range prerequisiteCycles(spec.Quests) {
		v.addError(fmt.Sprintf("quest '%s' can never be offered: its prerequisites form a cycle", id))
	}
}

func completes(spec *quest.CatalogSpec, actionID string) bool {
	for _, a := range spec.Actions {
		if a.ID == actionID {
			return a.CompletesQuest
		}
	}
	return false
}

// prerequisiteCycles returns the sorted ids of quests on a prerequisite cycle
func prerequisiteCycles(quests []quest.Quest) []string {
	prereqs := make(map[string][]string, len(quests))
	for _, q := range quests {
		prereqs[q.ID] = q.Prerequisites
	}

	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(quests))
	onCycle := make(map[string]bool)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		mark[id] = visiting
		stack = append(stack, id)
		for _, pre := range prereqs[id] {
			switch mark[pre] {
			case unvisited:
				visit(pre)
			case visiting:
				start := slices.Index(stack, pre)
				for _, member := range stack[start:] {
					onCycle[member] = true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[id] = done
	}

	for _, q := range quests {
		if mark[q.ID] == unvisited {
			visit(q.ID)
		}
	}

	out := make([]string, 0, len(onCycle))
	for id := range onCycle {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (v *CatalogValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *CatalogValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
