package main

import (
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/hookio"
	"pactd/internal/logging"
	"pactd/internal/teams"
)

var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Host hook entry points",
	Long:   "Entry points invoked by the host runtime. Each reads a JSON payload on stdin and may emit a JSON response on stdout. Not intended for interactive use.",
	Hidden: true,
}

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(
		hookSessionStartCmd,
		hookSessionEndCmd,
		hookPreCompactCmd,
		hookPostToolUseCmd,
		hookPreToolUseCmd,
		hookSubagentStartCmd,
	)
}

// readHookInput parses the hook payload from stdin. Nil means the input
// was empty or malformed; handlers treat that as nothing-to-do and still
// exit 0, since a nonzero hook exit would surface as a host error.
func readHookInput(event string) *hookio.Input {
	in, err := hookio.ReadStdin()
	if err != nil {
		logging.HooksDebug("%s: unusable input: %v", event, err)
		return nil
	}
	logging.InitAudit()
	logging.AuditWithSession(in.SessionID).HookInvoked(event, in.Source)
	return in
}

// finishHook journals hook completion. Errors are logged, never returned:
// every hook path ends in exit 0.
func finishHook(event, sessionID string, start time.Time, err error) {
	if err != nil {
		logging.HooksError("%s: %v", event, err)
	}
	logging.AuditWithSession(sessionID).HookCompleted(event, time.Since(start), err)
}

func teamManager() *teams.Manager {
	return teams.New(cfg.Paths.TeamsDir, cfg.Paths.TasksDir)
}
