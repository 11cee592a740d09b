package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pactd/internal/logging"
	"pactd/internal/teams"
)

// SchemaVersion is the checkpoint format version. Consumers reject
// anything else.
const SchemaVersion = "1.0"

// UnknownProject is the encoded-path fallback when neither the
// transcript path nor the environment identifies the project.
const UnknownProject = "unknown-project"

// WorkflowRef identifies the workflow a checkpoint belongs to.
type WorkflowRef struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	StartedAt string `json:"started_at"`
}

// StepRef identifies the step in flight when the checkpoint was taken.
type StepRef struct {
	Name      string `json:"name"`
	Sequence  int    `json:"sequence"`
	StartedAt string `json:"started_at"`
}

// Extraction records how the checkpoint was derived and how much trust
// to place in it.
type Extraction struct {
	Confidence          *float64 `json:"confidence"`
	Notes               string   `json:"notes"`
	TranscriptLinesRead int      `json:"transcript_lines_scanned"`
}

// Checkpoint is the persisted workflow state written by the PreCompact
// hook and consumed by the SessionStart hook. Pointer fields let the
// consumer distinguish a missing section from an empty one.
type Checkpoint struct {
	Version       string         `json:"version"`
	SessionID     string         `json:"session_id"`
	Workflow      *WorkflowRef   `json:"workflow"`
	Step          StepRef        `json:"step"`
	PendingAction *PendingAction `json:"pending_action"`
	Context       map[string]any `json:"context"`
	Extraction    *Extraction    `json:"extraction"`
	CreatedAt     string         `json:"created_at"`
}

// Confidence returns the extraction confidence, 0 when absent.
func (c *Checkpoint) Confidence() float64 {
	if c == nil || c.Extraction == nil || c.Extraction.Confidence == nil {
		return 0
	}
	return *c.Extraction.Confidence
}

// WorkflowName returns the workflow name, "none" when absent.
func (c *Checkpoint) WorkflowName() string {
	if c == nil || c.Workflow == nil || c.Workflow.Name == "" {
		return "none"
	}
	return c.Workflow.Name
}

// Validate checks the fields a consumer depends on, naming the first
// missing one.
func (c *Checkpoint) Validate() error {
	if c == nil {
		return fmt.Errorf("missing checkpoint")
	}
	if c.Version == "" {
		return fmt.Errorf("missing field: version")
	}
	if c.SessionID == "" {
		return fmt.Errorf("missing field: session_id")
	}
	if c.Workflow == nil {
		return fmt.Errorf("missing field: workflow")
	}
	if c.Workflow.Name == "" {
		return fmt.Errorf("missing field: workflow.name")
	}
	if c.Extraction == nil {
		return fmt.Errorf("missing field: extraction")
	}
	if c.Extraction.Confidence == nil {
		return fmt.Errorf("missing field: extraction.confidence")
	}
	return nil
}

// Timestamp returns the current UTC time in RFC 3339 form.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// EncodedProjectPath derives the project folder name used for the
// checkpoint file. Transcripts live under
// ~/.claude/projects/<encoded>/..., so the segment after "projects" is
// authoritative. When the transcript path does not carry it, the
// project directory from the environment is encoded the same way
// Claude Code does, slashes becoming dashes with the leading dash kept.
func EncodedProjectPath(transcriptPath string) string {
	const marker = ".claude/projects/"
	if idx := strings.Index(transcriptPath, marker); idx >= 0 {
		rest := transcriptPath[idx+len(marker):]
		if seg, _, found := strings.Cut(rest, "/"); found && seg != "" {
			return seg
		}
	}
	if dir := os.Getenv("CLAUDE_PROJECT_DIR"); dir != "" {
		return strings.ReplaceAll(dir, "/", "-")
	}
	return UnknownProject
}

// Path returns the checkpoint file location for a project.
func Path(refreshDir, encodedProject string) string {
	return filepath.Join(refreshDir, encodedProject+".json")
}

// Build assembles a checkpoint from the detection results. A workflow
// that already terminated records no workflow so the next session does
// not resurrect finished work.
func Build(sessionID string, wf *WorkflowInfo, step *StepInfo, linesScanned int) *Checkpoint {
	if wf.Terminated {
		return buildEmpty(sessionID, "Workflow terminated", linesScanned, wf.Confidence)
	}

	id := wf.ID
	if id == "" {
		id = uuid.NewString()
	}
	c := &Checkpoint{
		Version:   SchemaVersion,
		SessionID: sessionID,
		Workflow: &WorkflowRef{
			Name:      wf.Name,
			ID:        id,
			StartedAt: wf.StartedAt,
		},
		Context: map[string]any{},
		Extraction: &Extraction{
			Confidence:          &wf.Confidence,
			Notes:               wf.Notes,
			TranscriptLinesRead: linesScanned,
		},
		CreatedAt: Timestamp(),
	}
	if step != nil {
		c.Step = StepRef{Name: step.Name, Sequence: step.Sequence, StartedAt: step.StartedAt}
		c.PendingAction = step.PendingAction
		if step.Context != nil {
			c.Context = step.Context
		}
	}
	if team := TeamContext(teamsManager()); team != nil {
		c.Context["team"] = team
	}
	return c
}

// BuildNoWorkflow records that the transcript held no resumable
// workflow. Confidence is full; a clean scan is a definite answer.
func BuildNoWorkflow(sessionID, reason string, linesScanned int) *Checkpoint {
	if reason == "" {
		reason = "No active workflow detected"
	}
	return buildEmpty(sessionID, reason, linesScanned, 1.0)
}

func buildEmpty(sessionID, notes string, linesScanned int, confidence float64) *Checkpoint {
	return &Checkpoint{
		Version:   SchemaVersion,
		SessionID: sessionID,
		Workflow:  &WorkflowRef{Name: "none"},
		Context:   map[string]any{},
		Extraction: &Extraction{
			Confidence:          &confidence,
			Notes:               notes,
			TranscriptLinesRead: linesScanned,
		},
		CreatedAt: Timestamp(),
	}
}

// maxTeamMembers caps how many active member names a checkpoint carries.
const maxTeamMembers = 10

// teamsManager is swapped out by tests to point at a scratch directory.
var teamsManager = func() *teams.Manager {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return teams.New(
		filepath.Join(home, ".claude", "teams"),
		filepath.Join(home, ".claude", "tasks"),
	)
}

// TeamContext captures the first active team's roster for the
// checkpoint context: the team name, total member count, and up to ten
// active member names. Returns nil when no team exists.
func TeamContext(m *teams.Manager) map[string]any {
	if m == nil {
		return nil
	}
	active := m.ActiveTeams()
	if len(active) == 0 {
		return nil
	}
	name := active[0]
	members := m.Members(name)

	activeNames := []string{}
	for _, mem := range members {
		if !mem.Active() {
			continue
		}
		n := mem.Name
		if n == "" {
			n = "?"
		}
		activeNames = append(activeNames, n)
		if len(activeNames) == maxTeamMembers {
			break
		}
	}
	return map[string]any{
		"team_name":      name,
		"member_count":   len(members),
		"active_members": activeNames,
	}
}

// WriteFile persists the checkpoint atomically so a crashed hook never
// leaves a truncated file for the consumer to trip on.
func (c *Checkpoint) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	logging.CheckpointDebug("wrote checkpoint %s (workflow=%s, confidence=%.2f)",
		path, c.WorkflowName(), c.Confidence())
	return nil
}
