package agent

import (
	"regexp"
	"strings"
)

// PlanStep is one executable unit of a plan.
type PlanStep struct {
	Ordinal     int    `json:"ordinal"`
	Instruction string `json:"instruction"`
}

// synthesisMarker flags the plan line that hands over to the synthesis phase.
const synthesisMarker = "synthesize"

// listMarker needs whitespace after the punctuation so "3.5" or "2024-2025" stay whole.
var listMarker = regexp.MustCompile(`^\d+\s*[.):-]\s+`)

// ParsePlan extracts the executable steps from planner output.
//
// Only lines whose first non-blank character is a decimal digit count as steps,
// so wrapped or bulleted items are dropped. Lines mentioning "synthesize" are
// skipped. Ordinals are dense from 1 over the returned steps.
func ParsePlan(text string) []PlanStep {
	var steps []PlanStep
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		if strings.Contains(strings.ToLower(line), synthesisMarker) {
			continue
		}
		steps = append(steps, PlanStep{
			Ordinal:     len(steps) + 1,
			Instruction: instruction(line),
		})
	}
	return steps
}

// instruction strips the list marker ("3.", "3)", "3 -") from a plan line.
func instruction(line string) string {
	rest := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
	if rest == "" {
		return line
	}
	return rest
}
