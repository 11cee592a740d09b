package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pactd/internal/logging"
	"pactd/internal/teams"
)

// Refresh message fragments. The consumer emits a directive prompt the
// resumed session can act on without re-deriving workflow state.
const (
	refreshHeader   = "[POST-COMPACTION CHECKPOINT]"
	refreshPreamble = "Prior conversation auto-compacted. Resume unfinished PACT workflow below:"
	askUserNextStep = "Next Step: **Ask user how to proceed.**"
	approvalSuffix  = ". **Get user approval before acting.**"

	// Below this confidence the next step needs explicit user sign-off.
	actConfidence = 0.8
)

// BuildFromTranscript runs the full PreCompact extraction: parse the
// transcript, detect the most recent workflow trigger, extract step
// state, and assemble the checkpoint. Detections under the confidence
// floor are recorded as no-workflow rather than risking a bad resume.
func BuildFromTranscript(sessionID, transcriptPath string) (*Checkpoint, error) {
	turns, linesScanned, err := ParseTranscript(transcriptPath)
	if err != nil {
		return nil, err
	}

	wf := DetectWorkflow(turns)
	if wf == nil {
		return BuildNoWorkflow(sessionID, "No PACT trigger found", linesScanned), nil
	}
	if wf.Confidence < MinConfidence {
		reason := fmt.Sprintf("Trigger found but confidence %.1f below threshold", wf.Confidence)
		return BuildNoWorkflow(sessionID, reason, linesScanned), nil
	}

	step := ExtractStep(turns, wf)
	logging.Checkpoint("detected workflow %s at step %s (confidence %.2f)",
		wf.Name, step.Name, wf.Confidence)
	return Build(sessionID, wf, step, linesScanned), nil
}

// ReadCheckpoint loads a checkpoint file, returning nil when the file
// is missing or unreadable. A bad checkpoint is never worth failing a
// session start over.
func ReadCheckpoint(path string) *Checkpoint {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		logging.CheckpointDebug("corrupt checkpoint %s: %v", path, err)
		return nil
	}
	return &c
}

// ValidForSession reports whether a checkpoint can be consumed by the
// given session: structurally valid, a supported version, and written
// by the same session that is now resuming.
func ValidForSession(c *Checkpoint, sessionID string) bool {
	if c == nil || c.Validate() != nil {
		return false
	}
	if c.Version != SchemaVersion {
		return false
	}
	return c.SessionID == sessionID
}

// Message renders the checkpoint into the refresh prompt. A checkpoint
// with no workflow renders empty, meaning nothing gets injected.
func Message(c *Checkpoint) string {
	if c == nil || c.WorkflowName() == "none" {
		return ""
	}

	workflowLine := "Workflow: " + c.WorkflowName()
	if c.Workflow.ID != "" {
		workflowLine += fmt.Sprintf(" (%s)", c.Workflow.ID)
	}

	stepName := c.Step.Name
	if stepName == "" {
		stepName = "unknown"
	}
	prose := ProseContext(stepName, stepContext(c.Context))

	lines := []string{
		refreshHeader,
		refreshPreamble,
		workflowLine,
		"Context: " + prose,
	}
	lines = appendCheckpointTeam(lines, c.Context)

	if c.PendingAction != nil && c.PendingAction.Instruction != "" {
		next := "Next Step: " + c.PendingAction.Instruction
		if c.Confidence() < actConfidence {
			next += approvalSuffix
		}
		lines = append(lines, next)
	} else {
		lines = append(lines, askUserNextStep)
	}
	return strings.Join(lines, "\n")
}

// stepContext strips the team entry so prose rendering only sees the
// step's own key=value context.
func stepContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	if _, ok := ctx["team"]; !ok {
		return ctx
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k != "team" {
			out[k] = v
		}
	}
	return out
}

// appendCheckpointTeam adds the team lines recorded in the checkpoint
// context, when any teammates were active at checkpoint time.
func appendCheckpointTeam(lines []string, ctx map[string]any) []string {
	team, _ := ctx["team"].(map[string]any)
	if team == nil {
		return lines
	}
	members := stringSlice(team["active_members"])
	if len(members) == 0 {
		return lines
	}
	name, _ := team["team_name"].(string)
	if name == "" {
		name = "unknown"
	}
	lines = append(lines, fmt.Sprintf("Team: '%s' with %d active teammate(s): %s",
		name, len(members), nameList(members, 5, ", ...")))
	lines = append(lines,
		"Note: Teammates survived compaction and are still running. Use SendMessage to coordinate with them.")
	return lines
}

// AppendTeamContext appends live team roster lines by scanning the
// teams directory, used when the checkpoint itself predates the team.
func AppendTeamContext(lines []string, m *teams.Manager) []string {
	if m == nil {
		return lines
	}
	for _, name := range m.ActiveTeams() {
		members := m.Members(name)
		if len(members) == 0 {
			continue
		}
		var active []string
		for _, mem := range members {
			if mem.Active() {
				active = append(active, mem.Name)
			}
		}
		if len(active) == 0 {
			lines = append(lines, fmt.Sprintf("Team '%s' currently has no active teammates.", name))
			continue
		}
		roster := strings.Join(active, ", ")
		if len(active) > 6 {
			roster = fmt.Sprintf("%s, +%d more", strings.Join(active[:6], ", "), len(active)-6)
		}
		lines = append(lines, fmt.Sprintf("Team '%s' with %d active teammate(s): %s",
			name, len(active), roster))
		lines = append(lines,
			"Note: Teammates survived compaction as independent processes. Use SendMessage to re-establish coordination.")
	}
	return lines
}

func nameList(names []string, limit int, overflow string) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:limit], ", ") + overflow
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
