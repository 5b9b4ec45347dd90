// Package eligibility decides whether a character may start a quest.
//
// Evaluate is pure: it reads the character and quest and never changes either.
// Every failing check is reported, in a fixed order, so callers can show the
// player everything that stands in the way instead of only the first problem.
package eligibility

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

// ReasonCode identifies a blocking reason
type ReasonCode string

const (
	LevelTooLow         ReasonCode = "level_too_low"
	LevelTooHigh        ReasonCode = "level_too_high"
	MissingPrerequisite ReasonCode = "missing_prerequisite"
	MissingPredecessor  ReasonCode = "missing_predecessor"
	RequirementUnmet    ReasonCode = "requirement_unmet"
	QuestActive         ReasonCode = "quest_active"
	AlreadyCompleted    ReasonCode = "already_completed"
	AlreadyActive       ReasonCode = "already_active"
)

// Reason is one blocking reason. Only the fields relevant to Code are set.
type Reason struct {
	Code        ReasonCode `json:"code"`
	Message     string     `json:"message"`
	QuestID     string     `json:"quest_id,omitempty"`    // missing prerequisite or the active quest
	Requirement string     `json:"requirement,omitempty"` // requirement name
	Threshold   int        `json:"threshold,omitempty"`
	Actual      int        `json:"actual,omitempty"`
}

// Result is the outcome of Evaluate. Eligible is true only when Reasons is empty.
type Result struct {
	Eligible bool     `json:"eligible"`
	Reasons  []Reason `json:"reasons,omitempty"`
}

// Has reports whether a reason with the given code is present
func (r Result) Has(code ReasonCode) bool {
	return slices.ContainsFunc(r.Reasons, func(reason Reason) bool { return reason.Code == code })
}

// Codes returns the reason codes in order
func (r Result) Codes() []ReasonCode {
	codes := make([]ReasonCode, len(r.Reasons))
	for i, reason := range r.Reasons {
		codes[i] = reason.Code
	}
	return codes
}

// Summary joins reason messages for display
func (r Result) Summary() string {
	msgs := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		msgs[i] = reason.Message
	}
	return strings.Join(msgs, "; ")
}

// Evaluate runs the checks in order: level, prerequisites (and the
// predecessor of a continuation), requirements, single active quest, then
// whether the quest was already taken.
func Evaluate(c *quest.Character, q quest.Quest) Result {
	var reasons []Reason
	reasons = append(reasons, checkLevel(c, q)...)
	reasons = append(reasons, checkPrerequisites(c, q)...)
	reasons = append(reasons, checkPredecessor(c, q)...)
	reasons = append(reasons, checkRequirements(c, q)...)
	reasons = append(reasons, checkActive(c, q)...)
	reasons = append(reasons, checkRepeat(c, q)...)
	return Result{Eligible: len(reasons) == 0, Reasons: reasons}
}

func checkLevel(c *quest.Character, q quest.Quest) []Reason {
	if c.Level < q.Levels.Min {
		return []Reason{{
			Code:      LevelTooLow,
			Message:   fmt.Sprintf("requires level %d, character is level %d", q.Levels.Min, c.Level),
			Threshold: q.Levels.Min,
			Actual:    c.Level,
		}}
	}
	if q.Levels.Max != 0 && c.Level > q.Levels.Max {
		return []Reason{{
			Code:      LevelTooHigh,
			Message:   fmt.Sprintf("limited to level %d, character is level %d", q.Levels.Max, c.Level),
			Threshold: q.Levels.Max,
			Actual:    c.Level,
		}}
	}
	return nil
}

func checkPrerequisites(c *quest.Character, q quest.Quest) []Reason {
	var reasons []Reason
	for _, id := range slices.Sorted(slices.Values(q.Prerequisites)) {
		if c.HasCompleted(id) {
			continue
		}
		reasons = append(reasons, Reason{
			Code:    MissingPrerequisite,
			Message: fmt.Sprintf("requires completing %q", id),
			QuestID: id,
		})
	}
	return reasons
}

// checkPredecessor only offers a continuation to a character who has taken up
// the quest it continues, either still active or completed
func checkPredecessor(c *quest.Character, q quest.Quest) []Reason {
	if q.Continues == "" || c.HasCompleted(q.Continues) {
		return nil
	}
	if active, ok := c.ActiveQuestID(); ok && active == q.Continues {
		return nil
	}
	return []Reason{{
		Code:    MissingPredecessor,
		Message: fmt.Sprintf("continues %q, which has not been started", q.Continues),
		QuestID: q.Continues,
	}}
}

func checkRequirements(c *quest.Character, q quest.Quest) []Reason {
	var reasons []Reason
	for _, name := range slices.Sorted(maps.Keys(q.Requirements)) {
		threshold := q.Requirements[name]
		req, err := quest.LookupRequirement(name)
		if err != nil {
			// unknown names fail closed
			reasons = append(reasons, Reason{
				Code:        RequirementUnmet,
				Message:     err.Error(),
				Requirement: name,
				Threshold:   threshold,
			})
			continue
		}
		actual := req.Value(c)
		if req.Comparison.Satisfied(actual, threshold) {
			continue
		}
		reasons = append(reasons, Reason{
			Code:        RequirementUnmet,
			Message:     fmt.Sprintf("%s requires %s %d, have %d", name, req.Comparison.Symbol(), threshold, actual),
			Requirement: name,
			Threshold:   threshold,
			Actual:      actual,
		})
	}
	return reasons
}

func checkActive(c *quest.Character, q quest.Quest) []Reason {
	active, ok := c.ActiveQuestID()
	if !ok || active == q.ID {
		return nil
	}
	if q.Continues != "" && q.Continues == active {
		return nil
	}
	return []Reason{{
		Code:    QuestActive,
		Message: fmt.Sprintf("quest %q is already in progress", active),
		QuestID: active,
	}}
}

func checkRepeat(c *quest.Character, q quest.Quest) []Reason {
	if c.HasCompleted(q.ID) {
		return []Reason{{
			Code:    AlreadyCompleted,
			Message: fmt.Sprintf("quest %q was already completed", q.ID),
			QuestID: q.ID,
		}}
	}
	if active, ok := c.ActiveQuestID(); ok && active == q.ID {
		return []Reason{{
			Code:    AlreadyActive,
			Message: fmt.Sprintf("quest %q is already active", q.ID),
			QuestID: q.ID,
		}}
	}
	return nil
}
