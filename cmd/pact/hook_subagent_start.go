package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/hookio"
)

var hookSubagentStartCmd = &cobra.Command{
	Use:   "subagent-start",
	Short: "Tell a newly spawned agent who its teammates are",
	RunE:  runHookSubagentStart,
}

func runHookSubagentStart(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("subagent-start")
	if in == nil {
		return nil
	}
	defer finishHook("subagent-start", in.SessionID, start, nil)

	ctx := teamManager().PeerContext(in.AgentType, config.TeamName())
	return hookio.WriteAdditionalContext(os.Stdout, "SubagentStart", ctx)
}
