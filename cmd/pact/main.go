// Package main implements the pact CLI: hidden hook subcommands invoked by
// the coding-assistant host, plus operator commands for sessions, memory,
// checkpoints, and the telegram bridge.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/logging"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pact",
	Short: "pact - session continuity for PACT workflows",
	Long: `pact keeps multi-agent PACT workflows alive across context
compaction: it checkpoints workflow state before compaction, restores it
on session start, tracks team rosters and file edits, and persists rich
memory objects between sessions.

Hook subcommands are wired into the host via hooks.yaml and speak JSON on
stdin/stdout; the visible commands below are for operators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Initialize(cfg.Paths.StateDir); err != nil {
			// Logging is best effort; hooks must still run without it.
			fmt.Fprintf(os.Stderr, "warning: logging unavailable: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.claude/pact/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
