package checkpoint

import (
	"strings"
)

// Confidence weights. A clear slash-command trigger alone is not enough
// to act on; corroborating signals from later turns push a detection
// over the usable threshold.
const (
	confidenceTrigger         = 0.5
	confidenceStepMarker      = 0.2
	confidenceAgentInvocation = 0.2
	confidenceTeamSignals     = 0.2

	// MinConfidence is the floor below which a detection is discarded
	// and the checkpoint records no workflow.
	MinConfidence = 0.6
)

// workflowDef declares a PACT workflow: its slash-command trigger and
// its ordered step names as they appear in transcript step markers.
type workflowDef struct {
	Name    string
	Trigger string
	Steps   []string
}

var workflowDefs = []workflowDef{
	{
		Name:    "peer-review",
		Trigger: "/PACT:peer-review",
		Steps: []string{
			"commit", "create-pr", "invoke-reviewers", "synthesize",
			"recommendations", "merge-ready", "awaiting-merge",
		},
	},
	{
		Name:    "orchestrate",
		Trigger: "/PACT:orchestrate",
		Steps:   []string{"variety-assess", "prepare", "architect", "code", "test"},
	},
	{
		Name:    "plan-mode",
		Trigger: "/PACT:plan-mode",
		Steps:   []string{"analyze", "consult", "present"},
	},
	{
		Name:    "comPACT",
		Trigger: "/PACT:comPACT",
		Steps:   []string{"invoking-specialist", "specialist-completed"},
	},
	{
		Name:    "rePACT",
		Trigger: "/PACT:rePACT",
		Steps:   []string{"nested-prepare", "nested-architect", "nested-code", "nested-test"},
	},
	{
		Name:    "imPACT",
		Trigger: "/PACT:imPACT",
		Steps:   []string{"triage", "assessing-redo", "selecting-agents", "resolution-path"},
	},
}

func defByName(name string) *workflowDef {
	for i := range workflowDefs {
		if workflowDefs[i].Name == name {
			return &workflowDefs[i]
		}
	}
	return nil
}

// WorkflowInfo is the result of scanning a transcript for an active
// PACT workflow.
type WorkflowInfo struct {
	Name         string
	ID           string
	StartedAt    string
	TriggerIndex int
	Confidence   float64
	Terminated   bool
	Notes        string
}

var terminationPhrases = []string{
	"workflow complete",
	"workflow terminated",
	"workflow is complete",
	"pr merged successfully",
}

// DetectWorkflow scans the turns for the most recent PACT slash-command
// trigger and scores the detection with corroborating signals: step
// markers, Task agent invocations, and team interactions after the
// trigger. Returns nil when no trigger is present.
func DetectWorkflow(turns []Turn) *WorkflowInfo {
	var def *workflowDef
	triggerIdx := -1
	for i := range turns {
		if turns[i].Type != "user" {
			continue
		}
		for j := range workflowDefs {
			if strings.Contains(turns[i].Content, workflowDefs[j].Trigger) {
				def = &workflowDefs[j]
				triggerIdx = i
			}
		}
	}
	if def == nil {
		return nil
	}

	info := &WorkflowInfo{
		Name:         def.Name,
		ID:           triggerArgument(turns[triggerIdx].Content, def.Trigger),
		StartedAt:    turns[triggerIdx].Timestamp,
		TriggerIndex: triggerIdx,
		Confidence:   confidenceTrigger,
	}
	notes := []string{"clear trigger"}

	if step := findStepMarker(turns, triggerIdx, def); step != nil {
		info.Confidence += confidenceStepMarker
		notes = append(notes, "step: "+step.Name)
	}
	if hasAgentInvocations(turns, triggerIdx) {
		info.Confidence += confidenceAgentInvocation
		notes = append(notes, "agent invocations")
	}
	if CountTeamInteractions(turns, triggerIdx) > 0 {
		info.Confidence += confidenceTeamSignals
		notes = append(notes, "team interaction signals")
	}
	if info.Confidence > 1.0 {
		info.Confidence = 1.0
	}
	info.Notes = strings.Join(notes, ", ")
	info.Terminated = isTerminated(turns, triggerIdx)
	return info
}

// triggerArgument returns the first token following the trigger
// command, used as the workflow ID when present.
func triggerArgument(content, trigger string) string {
	idx := strings.Index(content, trigger)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(content[idx+len(trigger):])
	if rest == "" {
		return ""
	}
	fields := strings.Fields(rest)
	return fields[0]
}

func hasAgentInvocations(turns []Turn, afterIndex int) bool {
	for i := afterIndex; i < len(turns); i++ {
		if turns[i].ToolCall("Task") != nil {
			return true
		}
	}
	return false
}

func isTerminated(turns []Turn, afterIndex int) bool {
	for i := afterIndex; i < len(turns); i++ {
		if turns[i].Type != "assistant" {
			continue
		}
		lower := strings.ToLower(turns[i].Content)
		for _, phrase := range terminationPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}
