package main

import (
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/checkpoint"
	"pactd/internal/logging"
)

var hookPreCompactCmd = &cobra.Command{
	Use:   "pre-compact",
	Short: "Extract workflow state from the transcript and checkpoint it",
	RunE:  runHookPreCompact,
}

func runHookPreCompact(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("pre-compact")
	if in == nil {
		return nil
	}
	var err error
	defer func() { finishHook("pre-compact", in.SessionID, start, err) }()

	if in.TranscriptPath == "" {
		logging.CheckpointDebug("no transcript path, nothing to checkpoint")
		return nil
	}

	c, buildErr := checkpoint.BuildFromTranscript(in.SessionID, in.TranscriptPath)
	if buildErr != nil {
		err = buildErr
		return nil
	}

	encoded := checkpoint.EncodedProjectPath(in.TranscriptPath)
	path := checkpoint.Path(cfg.Paths.RefreshDir, encoded)
	if writeErr := c.WriteFile(path); writeErr != nil {
		err = writeErr
		return nil
	}

	logging.Checkpoint("wrote checkpoint %s (workflow %s, confidence %.2f)",
		path, c.WorkflowName(), c.Confidence())
	logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
		EventType: logging.AuditCheckpointWrite,
		Target:    path,
		Success:   true,
	})
	return nil
}
