// Package plan turns a task description into schedulable subtasks.
//
// The extractor is a deterministic keyword/pattern planner: a stand-in
// that keeps the decompose interface pluggable so a real planner can be
// substituted without touching the orchestrator.
package plan

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

var complexitySignals = []string{"complex", "advanced", "sophisticated", "comprehensive"}
var simplicitySignals = []string{"simple", "basic", "straightforward", "easy"}

// verbTypes maps an extraction verb to its subtask type. The type doubles
// as the single required capability of the subtask.
var verbTypes = map[string]string{
	"implement": "implementation",
	"test":      "testing",
	"design":    "design",
	"analyze":   "analysis",
	"optimize":  "optimization",
}

// pattern matches "verb object" up to a clause boundary. The object stops
// at " and ", punctuation, or end of input so chained instructions split
// into separate subtasks.
var pattern = regexp.MustCompile(`(?i)\b(implement|test|design|analyze|optimize)\s+(.+?)(\s+and\s+|[,.;]|$)`)

// Complexity scores a description on a 1..10 scale: base 5, +2 per
// complexity signal present, -2 per simplicity signal present.
func Complexity(description string) int {
	lower := strings.ToLower(description)
	score := 5
	for _, kw := range complexitySignals {
		if strings.Contains(lower, kw) {
			score += 2
		}
	}
	for _, kw := range simplicitySignals {
		if strings.Contains(lower, kw) {
			score -= 2
		}
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Decompose splits a task description into an ordered, non-empty list of
// subtasks. Identical descriptions always yield the same subtask count
// and types. Dependencies default to empty; the estimated duration is
// complexity * 1000 ms.
func Decompose(taskID, description string, priority int) []swarm.Subtask {
	complexity := Complexity(description)
	durationMs := int64(complexity) * 1000

	matches := pattern.FindAllStringSubmatch(description, -1)

	subtasks := make([]swarm.Subtask, 0, len(matches))
	for _, m := range matches {
		verb := strings.ToLower(m[1])
		object := strings.TrimSpace(m[2])
		subtaskType := verbTypes[verb]

		subtasks = append(subtasks, swarm.Subtask{
			ID:                   uuid.New().String(),
			TaskID:               taskID,
			Description:          verb + " " + object,
			Type:                 subtaskType,
			Priority:             priority,
			RequiredCapabilities: []string{subtaskType},
			EstimatedDurationMs:  durationMs,
		})
	}

	if len(subtasks) == 0 {
		subtasks = append(subtasks, swarm.Subtask{
			ID:                   uuid.New().String(),
			TaskID:               taskID,
			Description:          description,
			Type:                 "general",
			Priority:             priority,
			RequiredCapabilities: []string{"general"},
			EstimatedDurationMs:  durationMs,
		})
	}

	return subtasks
}
