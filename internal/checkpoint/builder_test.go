package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pactd/internal/teams"
)

// useScratchTeams points the builder's team lookup at an empty temp
// directory so checkpoints built in tests never pick up real teams.
func useScratchTeams(t *testing.T) *teams.Manager {
	t.Helper()
	base := t.TempDir()
	m := teams.New(filepath.Join(base, "teams"), filepath.Join(base, "tasks"))
	orig := teamsManager
	teamsManager = func() *teams.Manager { return m }
	t.Cleanup(func() { teamsManager = orig })
	return m
}

func sampleWorkflowInfo() *WorkflowInfo {
	return &WorkflowInfo{
		Name:       "peer-review",
		ID:         "pr-64",
		StartedAt:  "2025-01-22T12:00:00Z",
		Confidence: 0.85,
		Notes:      "clear trigger, step: recommendations",
	}
}

func sampleStepInfo() *StepInfo {
	return &StepInfo{
		Name:      "recommendations",
		Sequence:  5,
		StartedAt: "2025-01-22T12:05:00Z",
		PendingAction: &PendingAction{
			Type:        "AskUserQuestion",
			Instruction: "Would you like to review?",
			Data:        map[string]any{},
		},
		Context: map[string]any{"pr_number": 64, "has_blocking": false},
	}
}

func TestBuild_CompleteCheckpoint(t *testing.T) {
	useScratchTeams(t)

	c := Build("test-session", sampleWorkflowInfo(), sampleStepInfo(), 150)

	if c.Version != "1.0" {
		t.Errorf("Version = %q", c.Version)
	}
	if c.SessionID != "test-session" {
		t.Errorf("SessionID = %q", c.SessionID)
	}
	if c.Workflow.Name != "peer-review" || c.Workflow.ID != "pr-64" {
		t.Errorf("Workflow = %+v", c.Workflow)
	}
	if c.Step.Name != "recommendations" || c.Step.Sequence != 5 {
		t.Errorf("Step = %+v", c.Step)
	}
	if c.PendingAction == nil || c.PendingAction.Type != "AskUserQuestion" {
		t.Errorf("PendingAction = %+v", c.PendingAction)
	}
	if c.Context["pr_number"] != 64 {
		t.Errorf("Context = %+v", c.Context)
	}
	if c.Confidence() != 0.85 {
		t.Errorf("Confidence = %v", c.Confidence())
	}
	if c.Extraction.TranscriptLinesRead != 150 {
		t.Errorf("TranscriptLinesRead = %d", c.Extraction.TranscriptLinesRead)
	}
	if c.CreatedAt == "" {
		t.Error("CreatedAt not set")
	}
	if _, err := time.Parse(time.RFC3339, c.CreatedAt); err != nil {
		t.Errorf("CreatedAt not RFC 3339: %v", err)
	}
}

func TestBuild_TerminatedWorkflow(t *testing.T) {
	useScratchTeams(t)

	wf := sampleWorkflowInfo()
	wf.Terminated = true
	c := Build("test-session", wf, sampleStepInfo(), 150)

	if c.WorkflowName() != "none" {
		t.Errorf("WorkflowName = %q, want none", c.WorkflowName())
	}
	if c.Extraction.Notes != "Workflow terminated" {
		t.Errorf("Notes = %q", c.Extraction.Notes)
	}
}

func TestBuild_AttachesTeamContext(t *testing.T) {
	m := useScratchTeams(t)
	writeTeamConfig(t, m, "v3-agent-teams", `{"members": [
		{"name": "backend-1", "type": "pact-backend-coder", "status": "active"},
		{"name": "architect-1", "type": "pact-architect", "status": "active"},
		{"name": "stopped-1", "type": "pact-test-engineer", "status": "stopped"}
	]}`)

	c := Build("test-session", sampleWorkflowInfo(), sampleStepInfo(), 150)

	team, ok := c.Context["team"].(map[string]any)
	if !ok {
		t.Fatalf("team context missing: %+v", c.Context)
	}
	if team["team_name"] != "v3-agent-teams" {
		t.Errorf("team_name = %v", team["team_name"])
	}
	if team["member_count"] != 3 {
		t.Errorf("member_count = %v", team["member_count"])
	}
	active := team["active_members"].([]string)
	if len(active) != 2 || active[0] != "backend-1" || active[1] != "architect-1" {
		t.Errorf("active_members = %v", active)
	}
}

func TestBuild_GeneratesWorkflowID(t *testing.T) {
	useScratchTeams(t)

	wf := sampleWorkflowInfo()
	wf.ID = ""
	c := Build("test-session", wf, sampleStepInfo(), 10)

	if c.Workflow.ID == "" {
		t.Error("expected a generated workflow id when the trigger carries none")
	}
}

func TestBuildNoWorkflow(t *testing.T) {
	c := BuildNoWorkflow("test-session", "No PACT trigger found", 500)

	if c.Version != "1.0" || c.WorkflowName() != "none" {
		t.Errorf("checkpoint = %+v", c)
	}
	if c.Workflow.ID != "" || c.Step.Name != "" || c.Step.Sequence != 0 {
		t.Errorf("expected empty workflow id and step, got %+v / %+v", c.Workflow, c.Step)
	}
	if c.PendingAction != nil {
		t.Errorf("PendingAction = %+v", c.PendingAction)
	}
	if len(c.Context) != 0 {
		t.Errorf("Context = %+v", c.Context)
	}
	if c.Confidence() != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", c.Confidence())
	}
	if c.Extraction.Notes != "No PACT trigger found" {
		t.Errorf("Notes = %q", c.Extraction.Notes)
	}
	if c.Extraction.TranscriptLinesRead != 500 {
		t.Errorf("TranscriptLinesRead = %d", c.Extraction.TranscriptLinesRead)
	}
}

func TestBuildNoWorkflow_DefaultReason(t *testing.T) {
	c := BuildNoWorkflow("test-session", "", 10)
	if c.Extraction.Notes != "No active workflow detected" {
		t.Errorf("Notes = %q", c.Extraction.Notes)
	}
}

func TestValidate(t *testing.T) {
	useScratchTeams(t)

	valid := Build("test-session", sampleWorkflowInfo(), sampleStepInfo(), 150)
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate on complete checkpoint: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Checkpoint)
		wantErr string
	}{
		{"missing version", func(c *Checkpoint) { c.Version = "" }, "version"},
		{"missing session_id", func(c *Checkpoint) { c.SessionID = "" }, "session_id"},
		{"missing workflow", func(c *Checkpoint) { c.Workflow = nil }, "workflow"},
		{"missing workflow name", func(c *Checkpoint) { c.Workflow.Name = "" }, "workflow.name"},
		{"missing extraction", func(c *Checkpoint) { c.Extraction = nil }, "extraction"},
		{"missing confidence", func(c *Checkpoint) { c.Extraction.Confidence = nil }, "confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Build("test-session", sampleWorkflowInfo(), sampleStepInfo(), 150)
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not name %q", err, tt.wantErr)
			}
		})
	}

	var nilCheckpoint *Checkpoint
	if err := nilCheckpoint.Validate(); err == nil {
		t.Error("expected error for nil checkpoint")
	}
}

func TestEncodedProjectPath(t *testing.T) {
	t.Run("from transcript path", func(t *testing.T) {
		got := EncodedProjectPath("/Users/test/.claude/projects/-Users-test-myproject/session-123/session.jsonl")
		if got != "-Users-test-myproject" {
			t.Errorf("encoded = %q", got)
		}
	})

	t.Run("nested project", func(t *testing.T) {
		got := EncodedProjectPath("/home/user/.claude/projects/-home-user-code-org-repo/uuid/session.jsonl")
		if got != "-home-user-code-org-repo" {
			t.Errorf("encoded = %q", got)
		}
	})

	t.Run("fallback to project dir", func(t *testing.T) {
		t.Setenv("CLAUDE_PROJECT_DIR", "/Users/test/myproject")
		got := EncodedProjectPath("/invalid/path/without/projects")
		if got != "-Users-test-myproject" {
			t.Errorf("encoded = %q", got)
		}
	})

	t.Run("fallback unknown project", func(t *testing.T) {
		t.Setenv("CLAUDE_PROJECT_DIR", "")
		got := EncodedProjectPath("/invalid/path")
		if got != "unknown-project" {
			t.Errorf("encoded = %q", got)
		}
	})
}

func writeTeamConfig(t *testing.T, m *teams.Manager, name, body string) {
	t.Helper()
	dir := filepath.Join(m.TeamsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestTeamContext(t *testing.T) {
	t.Run("no teams returns nil", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		if got := TeamContext(m); got != nil {
			t.Errorf("TeamContext = %+v, want nil", got)
		}
	})

	t.Run("truncates active members at 10", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		var members []string
		for i := 0; i < 15; i++ {
			members = append(members,
				`{"name": "member-`+string(rune('a'+i))+`", "type": "pact-backend-coder", "status": "active"}`)
		}
		writeTeamConfig(t, m, "big-team", `{"members": [`+strings.Join(members, ",")+`]}`)

		got := TeamContext(m)
		if got == nil {
			t.Fatal("TeamContext returned nil")
		}
		if got["member_count"] != 15 {
			t.Errorf("member_count = %v", got["member_count"])
		}
		if active := got["active_members"].([]string); len(active) != 10 {
			t.Errorf("active_members has %d entries, want 10", len(active))
		}
	})

	t.Run("member without name becomes question mark", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		writeTeamConfig(t, m, "unnamed-team",
			`{"members": [{"type": "pact-backend-coder", "status": "active"}]}`)

		got := TeamContext(m)
		if got == nil {
			t.Fatal("TeamContext returned nil")
		}
		active := got["active_members"].([]string)
		if len(active) != 1 || active[0] != "?" {
			t.Errorf("active_members = %v, want [?]", active)
		}
	})

	t.Run("all stopped yields empty active list", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		writeTeamConfig(t, m, "idle-team",
			`{"members": [{"name": "member-1", "type": "pact-backend-coder", "status": "stopped"}]}`)

		got := TeamContext(m)
		if got == nil {
			t.Fatal("TeamContext returned nil")
		}
		if active := got["active_members"].([]string); len(active) != 0 {
			t.Errorf("active_members = %v, want empty", active)
		}
	})
}

func TestWriteFileAndReadCheckpoint(t *testing.T) {
	useScratchTeams(t)

	c := Build("round-trip", sampleWorkflowInfo(), sampleStepInfo(), 42)
	path := Path(t.TempDir(), "-test-project")

	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got := ReadCheckpoint(path)
	if got == nil {
		t.Fatal("ReadCheckpoint returned nil")
	}
	if got.SessionID != "round-trip" || got.WorkflowName() != "peer-review" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if diff := cmp.Diff(c.Workflow, got.Workflow); diff != "" {
		t.Errorf("workflow mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Step, got.Step); diff != "" {
		t.Errorf("step mismatch (-want +got):\n%s", diff)
	}
	if got.PendingAction == nil || got.PendingAction.Instruction != "Would you like to review?" {
		t.Errorf("PendingAction = %+v", got.PendingAction)
	}
	if got.Confidence() != 0.85 {
		t.Errorf("Confidence = %v", got.Confidence())
	}
	// JSON numbers come back as float64.
	if got.Context["pr_number"] != float64(64) {
		t.Errorf("pr_number = %v (%T)", got.Context["pr_number"], got.Context["pr_number"])
	}
}

func TestReadCheckpoint_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	if got := ReadCheckpoint(filepath.Join(dir, "none.json")); got != nil {
		t.Errorf("ReadCheckpoint(missing) = %+v, want nil", got)
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("not valid json {"), 0o644)
	if got := ReadCheckpoint(bad); got != nil {
		t.Errorf("ReadCheckpoint(corrupt) = %+v, want nil", got)
	}
}
