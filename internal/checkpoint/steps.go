package checkpoint

import (
	"strconv"
	"strings"
)

// StepInfo describes the workflow step in flight when compaction hit.
type StepInfo struct {
	Name          string
	Sequence      int
	StartedAt     string
	PendingAction *PendingAction
	Context       map[string]any
}

// PendingAction is an operation that was awaiting completion, most
// often a question posed to the user that never got an answer.
type PendingAction struct {
	Type        string         `json:"type"`
	Instruction string         `json:"instruction"`
	Data        map[string]any `json:"data"`
}

// findStepMarker returns the most recent step marker after the trigger.
// Markers are assistant lines of the form "<step-name>: ..." where the
// step name belongs to the workflow's step list.
func findStepMarker(turns []Turn, triggerIdx int, def *workflowDef) *StepInfo {
	var found *StepInfo
	for i := triggerIdx; i < len(turns); i++ {
		if turns[i].Type != "assistant" {
			continue
		}
		for _, line := range strings.Split(turns[i].Content, "\n") {
			line = strings.TrimSpace(line)
			for seq, step := range def.Steps {
				if !strings.HasPrefix(line, step+":") {
					continue
				}
				info := &StepInfo{
					Name:      step,
					Sequence:  seq + 1,
					StartedAt: turns[i].Timestamp,
					Context:   parseMarkerContext(line[len(step)+1:]),
				}
				found = info
			}
		}
	}
	return found
}

// ExtractStep builds the StepInfo for a detected workflow: the latest
// step marker plus any pending action left hanging at the transcript
// tail. A workflow with no marker yet reports its first step.
func ExtractStep(turns []Turn, info *WorkflowInfo) *StepInfo {
	def := defByName(info.Name)
	if def == nil {
		return &StepInfo{Context: map[string]any{}}
	}

	step := findStepMarker(turns, info.TriggerIndex, def)
	if step == nil {
		step = &StepInfo{
			Name:      def.Steps[0],
			Sequence:  1,
			StartedAt: info.StartedAt,
			Context:   map[string]any{},
		}
	}
	step.PendingAction = findPendingAction(turns, info.TriggerIndex)
	return step
}

// findPendingAction looks for an unanswered request at the end of the
// transcript: an AskUserQuestion tool call with no user turn after it,
// or a trailing assistant message that ends with a question.
func findPendingAction(turns []Turn, triggerIdx int) *PendingAction {
	lastUser := -1
	for i := triggerIdx; i < len(turns); i++ {
		if turns[i].Type == "user" {
			lastUser = i
		}
	}

	for i := len(turns) - 1; i > lastUser && i >= triggerIdx; i-- {
		if tc := turns[i].ToolCall("AskUserQuestion"); tc != nil {
			instruction := tc.InputString("question")
			if instruction == "" {
				instruction = tc.InputString("prompt")
			}
			return &PendingAction{
				Type:        "AskUserQuestion",
				Instruction: instruction,
				Data:        tc.Input,
			}
		}
	}

	if len(turns) > 0 {
		last := turns[len(turns)-1]
		if last.Type == "assistant" && len(last.ToolCalls) == 0 {
			if q := trailingQuestion(last.Content); q != "" {
				return &PendingAction{
					Type:        "AskUserQuestion",
					Instruction: q,
					Data:        map[string]any{},
				}
			}
		}
	}
	return nil
}

func trailingQuestion(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "?") {
			return line
		}
		return ""
	}
	return ""
}

// parseMarkerContext extracts key=value tokens from the text after a
// step marker. Numeric and boolean values are typed, everything else
// stays a string, and tokens without "=" are ignored as prose.
func parseMarkerContext(rest string) map[string]any {
	ctx := map[string]any{}
	for _, field := range strings.Fields(rest) {
		eq := strings.Index(field, "=")
		if eq <= 0 {
			continue
		}
		key := field[:eq]
		val := strings.TrimRight(field[eq+1:], ".,;")
		switch {
		case val == "true" || val == "True":
			ctx[key] = true
		case val == "false" || val == "False":
			ctx[key] = false
		default:
			if n, err := strconv.Atoi(val); err == nil {
				ctx[key] = n
			} else {
				ctx[key] = val
			}
		}
	}
	return ctx
}
