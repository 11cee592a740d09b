package checkpoint

import (
	"path/filepath"
	"strings"
	"testing"

	"pactd/internal/teams"
)

func confidencePtr(v float64) *float64 { return &v }

func TestMessage_DirectiveFormatHighConfidence(t *testing.T) {
	c := &Checkpoint{
		Version:   "1.0",
		SessionID: "s",
		Workflow:  &WorkflowRef{Name: "peer-review", ID: "PR#88"},
		Step:      StepRef{Name: "awaiting-merge"},
		PendingAction: &PendingAction{
			Type:        "UserDecision",
			Instruction: "Waiting for user to authorize merge",
		},
		Context:    map[string]any{},
		Extraction: &Extraction{Confidence: confidencePtr(0.9)},
	}

	lines := strings.Split(Message(c), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if lines[0] != "[POST-COMPACTION CHECKPOINT]" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "Prior conversation auto-compacted. Resume unfinished PACT workflow below:" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[2] != "Workflow: peer-review (PR#88)" {
		t.Errorf("line 2 = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "Context:") {
		t.Errorf("line 3 = %q", lines[3])
	}
	if !strings.Contains(strings.ToLower(lines[3]), "waiting for user decision") {
		t.Errorf("line 3 = %q", lines[3])
	}
	if lines[4] != "Next Step: Waiting for user to authorize merge" {
		t.Errorf("line 4 = %q", lines[4])
	}
}

func TestMessage_DirectiveFormatLowConfidence(t *testing.T) {
	c := &Checkpoint{
		Workflow: &WorkflowRef{Name: "peer-review", ID: "PR#88"},
		Step:     StepRef{Name: "awaiting-merge"},
		PendingAction: &PendingAction{
			Type:        "UserDecision",
			Instruction: "Waiting for user to authorize merge",
		},
		Extraction: &Extraction{Confidence: confidencePtr(0.6)},
	}

	lines := strings.Split(Message(c), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	want := "Next Step: Waiting for user to authorize merge. **Get user approval before acting.**"
	if lines[4] != want {
		t.Errorf("line 4 = %q, want %q", lines[4], want)
	}
}

func TestMessage_NoPendingActionAsksUser(t *testing.T) {
	for _, conf := range []float64{0.5, 0.9} {
		c := &Checkpoint{
			Workflow:   &WorkflowRef{Name: "peer-review"},
			Step:       StepRef{Name: "commit"},
			Extraction: &Extraction{Confidence: confidencePtr(conf)},
		}
		msg := Message(c)
		if !strings.Contains(msg, "Next Step: **Ask user how to proceed.**") {
			t.Errorf("confidence %v: missing ask-user next step:\n%s", conf, msg)
		}
		if strings.Contains(msg, "Get user approval") {
			t.Errorf("confidence %v: unexpected approval suffix", conf)
		}
	}
}

func TestMessage_NoWorkflowIsEmpty(t *testing.T) {
	c := &Checkpoint{
		Workflow:   &WorkflowRef{Name: "none"},
		Extraction: &Extraction{Confidence: confidencePtr(1.0)},
	}
	if got := Message(c); got != "" {
		t.Errorf("Message = %q, want empty", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
}

func TestMessage_InvokeReviewersProse(t *testing.T) {
	c := &Checkpoint{
		Workflow:   &WorkflowRef{Name: "peer-review", ID: "pr-88"},
		Step:       StepRef{Name: "invoke-reviewers"},
		Context:    map[string]any{"reviewers": "2/3", "blocking": "0"},
		Extraction: &Extraction{Confidence: confidencePtr(0.9)},
	}
	msg := Message(c)
	if !strings.Contains(msg, "Launched 3 reviewer agents; 2 had completed with 0 blocking issues.") {
		t.Errorf("message = %q", msg)
	}
}

func TestMessage_MergeReadyProse(t *testing.T) {
	c := &Checkpoint{
		Workflow:   &WorkflowRef{Name: "peer-review", ID: "pr-42"},
		Step:       StepRef{Name: "merge-ready"},
		Context:    map[string]any{"blocking": 0},
		Extraction: &Extraction{Confidence: confidencePtr(0.9)},
	}
	msg := Message(c)
	if !strings.Contains(strings.ToLower(msg), "ready for merge") {
		t.Errorf("message = %q", msg)
	}
}

func TestMessage_UnknownStepFallback(t *testing.T) {
	c := &Checkpoint{
		Workflow:   &WorkflowRef{Name: "peer-review", ID: "pr-99"},
		Step:       StepRef{Name: "some-unknown-step"},
		Context:    map[string]any{"foo": "bar", "baz": 123},
		Extraction: &Extraction{Confidence: confidencePtr(0.9)},
	}
	msg := Message(c)
	if !strings.Contains(msg, "some-unknown-step") {
		t.Errorf("message missing step name: %q", msg)
	}
	if !strings.Contains(msg, "foo=bar") {
		t.Errorf("message missing key=value fallback: %q", msg)
	}
}

func TestMessage_MissingStepNameShowsUnknown(t *testing.T) {
	c := &Checkpoint{
		Workflow:   &WorkflowRef{Name: "peer-review"},
		Extraction: &Extraction{Confidence: confidencePtr(0.5)},
	}
	msg := Message(c)
	if !strings.Contains(msg, "unknown") {
		t.Errorf("message = %q, want default step name", msg)
	}
	if !strings.Contains(msg, "Next Step: **Ask user how to proceed.**") {
		t.Errorf("message = %q", msg)
	}
}

func TestMessage_TeamContextLines(t *testing.T) {
	c := &Checkpoint{
		Workflow: &WorkflowRef{Name: "orchestrate", ID: "feat"},
		Step:     StepRef{Name: "code"},
		Context: map[string]any{
			"team": map[string]any{
				"team_name":      "test-team",
				"member_count":   1,
				"active_members": []any{"coder-1"},
			},
		},
		PendingAction: &PendingAction{Type: "AgentWork", Instruction: "Wait for agents"},
		Extraction:    &Extraction{Confidence: confidencePtr(0.9)},
	}

	msg := Message(c)
	lines := strings.Split(msg, "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7:\n%s", len(lines), msg)
	}
	if !strings.Contains(lines[4], "Team: 'test-team' with 1 active teammate(s): coder-1") {
		t.Errorf("team line = %q", lines[4])
	}
	if !strings.Contains(lines[5], "Teammates survived compaction") || !strings.Contains(lines[5], "SendMessage") {
		t.Errorf("note line = %q", lines[5])
	}
	if lines[6] != "Next Step: Wait for agents" {
		t.Errorf("next step line = %q", lines[6])
	}
}

func TestMessage_TeamContextTruncatesAtFive(t *testing.T) {
	members := make([]any, 8)
	for i := range members {
		members[i] = "member-" + string(rune('0'+i))
	}
	c := &Checkpoint{
		Workflow: &WorkflowRef{Name: "orchestrate", ID: "big-feat"},
		Step:     StepRef{Name: "code"},
		Context: map[string]any{
			"team": map[string]any{
				"team_name":      "big-team",
				"member_count":   8,
				"active_members": members,
			},
		},
		Extraction: &Extraction{Confidence: confidencePtr(0.9)},
	}

	msg := Message(c)
	if !strings.Contains(msg, "8 active teammate(s)") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "member-0") || !strings.Contains(msg, "member-4") {
		t.Errorf("message missing first five members: %q", msg)
	}
	if strings.Contains(msg, "member-5,") {
		t.Errorf("message should truncate after five members: %q", msg)
	}
	if !strings.Contains(msg, "...") {
		t.Errorf("message missing truncation marker: %q", msg)
	}
}

func TestMessage_TeamContextEdgeCases(t *testing.T) {
	t.Run("empty active members omits team lines", func(t *testing.T) {
		c := &Checkpoint{
			Workflow: &WorkflowRef{Name: "orchestrate"},
			Step:     StepRef{Name: "code"},
			Context: map[string]any{
				"team": map[string]any{
					"team_name":      "idle-team",
					"member_count":   2,
					"active_members": []any{},
				},
			},
			Extraction: &Extraction{Confidence: confidencePtr(0.9)},
		}
		msg := Message(c)
		if strings.Contains(msg, "Team:") {
			t.Errorf("message should omit team line: %q", msg)
		}
	})

	t.Run("missing team name renders unknown", func(t *testing.T) {
		c := &Checkpoint{
			Workflow: &WorkflowRef{Name: "orchestrate"},
			Step:     StepRef{Name: "code"},
			Context: map[string]any{
				"team": map[string]any{
					"member_count":   1,
					"active_members": []any{"coder-1"},
				},
			},
			Extraction: &Extraction{Confidence: confidencePtr(0.9)},
		}
		msg := Message(c)
		if !strings.Contains(msg, "'unknown'") {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("no team entry at all", func(t *testing.T) {
		c := &Checkpoint{
			Workflow:   &WorkflowRef{Name: "orchestrate"},
			Step:       StepRef{Name: "code"},
			Context:    map[string]any{},
			Extraction: &Extraction{Confidence: confidencePtr(0.9)},
		}
		msg := Message(c)
		if strings.Contains(msg, "Team:") || strings.Contains(msg, "SendMessage") {
			t.Errorf("message = %q", msg)
		}
	})
}

func TestValidForSession(t *testing.T) {
	useScratchTeams(t)
	c := Build("test-session-123", sampleWorkflowInfo(), sampleStepInfo(), 10)

	if !ValidForSession(c, "test-session-123") {
		t.Error("valid checkpoint rejected")
	}
	if ValidForSession(c, "different-session") {
		t.Error("mismatched session accepted")
	}

	c.Version = "2.0"
	if ValidForSession(c, "test-session-123") {
		t.Error("unsupported version accepted")
	}
	c.Version = "1.0"

	c.Workflow = nil
	if ValidForSession(c, "test-session-123") {
		t.Error("checkpoint without workflow accepted")
	}

	if ValidForSession(nil, "test-session-123") {
		t.Error("nil checkpoint accepted")
	}
}

func TestAppendTeamContext(t *testing.T) {
	t.Run("no teams leaves lines untouched", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		lines := AppendTeamContext([]string{"existing line"}, m)
		if len(lines) != 1 || lines[0] != "existing line" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("single team with active members", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		writeTeamConfig(t, m, "test-team", `{"members": [
			{"name": "backend-1", "type": "pact-backend-coder", "status": "active"},
			{"name": "architect-1", "type": "pact-architect", "status": "active"}
		]}`)

		lines := AppendTeamContext(nil, m)
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
		}
		if !strings.Contains(lines[0], "test-team") || !strings.Contains(lines[0], "2 active teammate(s)") {
			t.Errorf("line 0 = %q", lines[0])
		}
		if !strings.Contains(lines[0], "backend-1") || !strings.Contains(lines[0], "architect-1") {
			t.Errorf("line 0 = %q", lines[0])
		}
		if !strings.Contains(lines[1], "SendMessage") {
			t.Errorf("line 1 = %q", lines[1])
		}
	})

	t.Run("team with no active members", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		writeTeamConfig(t, m, "idle-team", `{"members": [
			{"name": "backend-1", "type": "pact-backend-coder", "status": "stopped"}
		]}`)

		lines := AppendTeamContext(nil, m)
		if len(lines) != 1 {
			t.Fatalf("got %d lines, want 1: %v", len(lines), lines)
		}
		if !strings.Contains(lines[0], "no active teammates") {
			t.Errorf("line 0 = %q", lines[0])
		}
	})

	t.Run("truncates member list at six", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		var members []string
		for i := 0; i < 8; i++ {
			members = append(members,
				`{"name": "member-`+string(rune('0'+i))+`", "type": "pact-backend-coder", "status": "active"}`)
		}
		writeTeamConfig(t, m, "big-team", `{"members": [`+strings.Join(members, ",")+`]}`)

		lines := AppendTeamContext(nil, m)
		if !strings.Contains(lines[0], "8 active teammate(s)") {
			t.Errorf("line 0 = %q", lines[0])
		}
		if !strings.Contains(lines[0], "+2 more") {
			t.Errorf("line 0 = %q", lines[0])
		}
	})

	t.Run("multiple teams each get lines", func(t *testing.T) {
		m := teams.New(filepath.Join(t.TempDir(), "teams"), "")
		for _, name := range []string{"team-alpha", "team-beta"} {
			writeTeamConfig(t, m, name, `{"members": [
				{"name": "backend-1", "type": "pact-backend-coder", "status": "active"}
			]}`)
		}

		lines := AppendTeamContext(nil, m)
		var teamLines int
		for _, l := range lines {
			if strings.HasPrefix(l, "Team ") {
				teamLines++
			}
		}
		if teamLines != 2 {
			t.Errorf("team lines = %d, want 2: %v", teamLines, lines)
		}
	})
}

func TestBuildFromTranscript_EndToEnd(t *testing.T) {
	useScratchTeams(t)
	path := writeTranscript(t,
		userLine(t, "2025-01-22T12:00:00Z", "/PACT:peer-review"),
		assistantLine(t, "2025-01-22T12:01:00Z", "create-pr: pr_number=99"),
		assistantLine(t, "2025-01-22T12:05:00Z", "recommendations: pr_number=99 has_blocking=false"),
		toolUseLine(t, "2025-01-22T12:06:00Z", "AskUserQuestion",
			map[string]any{"question": "Would you like to review the recommendations?"}),
	)

	c, err := BuildFromTranscript("test-session-e2e", path)
	if err != nil {
		t.Fatalf("BuildFromTranscript failed: %v", err)
	}
	if c.WorkflowName() != "peer-review" || c.SessionID != "test-session-e2e" {
		t.Errorf("checkpoint = %+v", c)
	}
	if c.Step.Name != "recommendations" {
		t.Errorf("Step = %+v", c.Step)
	}

	// The consumer side turns it into a refresh message.
	if !ValidForSession(c, "test-session-e2e") {
		t.Fatal("checkpoint invalid for its own session")
	}
	msg := Message(c)
	if !strings.Contains(msg, "[POST-COMPACTION CHECKPOINT]") || !strings.Contains(msg, "peer-review") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "Would you like to review") {
		t.Errorf("message missing pending question: %q", msg)
	}
}

func TestBuildFromTranscript_NoTrigger(t *testing.T) {
	path := writeTranscript(t,
		userLine(t, "", "help me debug this"),
		assistantLine(t, "", "Sure."),
	)

	c, err := BuildFromTranscript("sess", path)
	if err != nil {
		t.Fatalf("BuildFromTranscript failed: %v", err)
	}
	if c.WorkflowName() != "none" {
		t.Errorf("WorkflowName = %q, want none", c.WorkflowName())
	}
	if c.Confidence() != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", c.Confidence())
	}
	if c.Extraction.Notes != "No PACT trigger found" {
		t.Errorf("Notes = %q", c.Extraction.Notes)
	}
	if Message(c) != "" {
		t.Error("no-workflow checkpoint should render empty message")
	}
}

func TestBuildFromTranscript_Terminated(t *testing.T) {
	useScratchTeams(t)
	path := writeTranscript(t,
		userLine(t, "", "/PACT:orchestrate feature"),
		assistantLine(t, "", "test: running QA"),
		assistantLine(t, "", "Workflow complete."),
	)

	c, err := BuildFromTranscript("sess", path)
	if err != nil {
		t.Fatalf("BuildFromTranscript failed: %v", err)
	}
	if c.WorkflowName() != "none" {
		t.Errorf("WorkflowName = %q, want none", c.WorkflowName())
	}
	if c.Extraction.Notes != "Workflow terminated" {
		t.Errorf("Notes = %q", c.Extraction.Notes)
	}
}
