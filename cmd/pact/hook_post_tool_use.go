package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/filetrack"
	"pactd/internal/hookio"
	"pactd/internal/logging"
)

var hookPostToolUseCmd = &cobra.Command{
	Use:   "post-tool-use",
	Short: "Record file edits in the team journal and flag conflicts",
	RunE:  runHookPostToolUse,
}

// editTools are the tool names whose targets get journaled.
var editTools = map[string]bool{
	"Edit":      true,
	"Write":     true,
	"MultiEdit": true,
}

func runHookPostToolUse(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("post-tool-use")
	if in == nil {
		return nil
	}
	var err error
	defer func() { finishHook("post-tool-use", in.SessionID, start, err) }()

	if !editTools[in.ToolName] {
		return nil
	}
	filePath := in.FilePath()
	if filePath == "" {
		return nil
	}
	team := config.TeamName()
	if team == "" {
		return nil
	}

	agent := config.AgentName()
	tracker := filetrack.New(filetrack.TeamPath(cfg.Paths.TeamsDir, team))

	// Conflict detection has to precede the append so an agent's own
	// first edit never conflicts with itself.
	warning := tracker.CheckConflict(filePath, agent)

	if recErr := tracker.Record(filePath, agent, in.ToolName); recErr != nil {
		err = recErr
	} else {
		logging.FiletrackDebug("recorded %s by %s (%s)", filePath, agent, in.ToolName)
		logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
			EventType: logging.AuditEditRecord,
			Agent:     agent,
			Target:    filePath,
			Success:   true,
		})
	}

	if warning == "" {
		return nil
	}
	logging.Filetrack("conflict on %s: %s", filePath, warning)
	logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
		EventType: logging.AuditEditConflict,
		Agent:     agent,
		Target:    filePath,
		Success:   true,
		Message:   warning,
	})
	return hookio.WriteAdditionalContext(os.Stdout, "PostToolUse", "⚠️ "+warning)
}
