package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/checkpoint"
	"pactd/internal/config"
	"pactd/internal/hookio"
	"pactd/internal/logging"
	"pactd/internal/staleness"
)

var hookSessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Inject team state and post-compaction refresh at session start",
	RunE:  runHookSessionStart,
}

func runHookSessionStart(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("session-start")
	if in == nil {
		return nil
	}
	defer finishHook("session-start", in.SessionID, start, nil)

	var parts []string

	if in.Source == "compact" {
		if msg := consumeCheckpoint(in); msg != "" {
			parts = append(parts, msg)
		}
	}

	m := teamManager()
	if instr := m.Instruction(in.Source); instr != "" {
		parts = append(parts, instr)
	}

	claudeMD := staleness.ProjectClaudeMD(config.ProjectDir())
	if report := staleness.CheckPinned(claudeMD, cfg.Staleness.Days, cfg.Staleness.TokenBudget, time.Now()); report != "" {
		parts = append(parts, report)
	}

	return hookio.WriteAdditionalContext(os.Stdout, "SessionStart", strings.Join(parts, "\n\n"))
}

// consumeCheckpoint loads the checkpoint written at PreCompact and turns
// it into the refresh message. A missing record degrades to "", while an
// unresolvable project path or a failed validation yields a short
// diagnostic; none of these fail the hook.
func consumeCheckpoint(in *hookio.Input) string {
	encoded := checkpoint.EncodedProjectPath(in.TranscriptPath)
	if encoded == checkpoint.UnknownProject {
		logging.RefreshDebug("no project path for session %s", in.SessionID)
		return "Post-compaction refresh skipped: project path unavailable."
	}
	path := checkpoint.Path(cfg.Paths.RefreshDir, encoded)

	c := checkpoint.ReadCheckpoint(path)
	if c == nil {
		logging.RefreshDebug("no checkpoint at %s", path)
		return ""
	}
	if !checkpoint.ValidForSession(c, in.SessionID) {
		logging.RefreshDebug("checkpoint at %s not valid for session %s", path, in.SessionID)
		logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
			EventType: logging.AuditCheckpointReject,
			Target:    path,
			Success:   true,
		})
		return "Post-compaction checkpoint validation failed; resuming without workflow state."
	}

	msg := checkpoint.Message(c)
	if msg == "" {
		return ""
	}
	lines := strings.Split(msg, "\n")
	lines = checkpoint.AppendTeamContext(lines, teamManager())

	logging.Refresh("consumed checkpoint for workflow %s", c.WorkflowName())
	logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
		EventType: logging.AuditCheckpointConsume,
		Target:    path,
		Success:   true,
	})
	return strings.Join(lines, "\n")
}
