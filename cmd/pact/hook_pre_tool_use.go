package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/hookio"
	"pactd/internal/logging"
	"pactd/internal/worktree"
)

var hookPreToolUseCmd = &cobra.Command{
	Use:   "pre-tool-use",
	Short: "Block file edits outside the enforced worktree",
	RunE:  runHookPreToolUse,
}

func runHookPreToolUse(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("pre-tool-use")
	if in == nil {
		return nil
	}
	defer finishHook("pre-tool-use", in.SessionID, start, nil)

	if !editTools[in.ToolName] {
		return nil
	}
	filePath := in.FilePath()
	if filePath == "" {
		return nil
	}

	reason := worktree.CheckBoundary(filePath, config.WorktreePath())
	blocked := reason != ""
	logging.AuditWithSession(in.SessionID).GuardDecision(filePath, blocked, reason)
	if !blocked {
		return nil
	}
	logging.Worktree("blocked %s: %s", filePath, reason)
	return hookio.WriteDeny(os.Stdout, "PreToolUse", reason)
}
