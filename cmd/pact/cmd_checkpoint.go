package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"pactd/internal/checkpoint"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect the post-compaction checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the checkpoint stored for the current project",
	RunE:  runCheckpointShow,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	encoded := checkpoint.EncodedProjectPath("")
	path := checkpoint.Path(cfg.Paths.RefreshDir, encoded)

	c := checkpoint.ReadCheckpoint(path)
	if c == nil {
		fmt.Printf("No checkpoint at %s.\n", path)
		return nil
	}

	fmt.Println(labelStyle.Render("Checkpoint ") + dimStyle.Render(path))
	fmt.Printf("%s %s\n", labelStyle.Render("Session:"), c.SessionID)
	fmt.Printf("%s %s", labelStyle.Render("Workflow:"), c.WorkflowName())
	if c.Workflow != nil && c.Workflow.ID != "" {
		fmt.Printf(" (%s)", c.Workflow.ID)
	}
	fmt.Println()
	step := c.Step.Name
	if step == "" {
		step = "unknown"
	}
	fmt.Printf("%s %s (sequence %d)\n", labelStyle.Render("Step:"), step, c.Step.Sequence)
	fmt.Printf("%s %.2f\n", labelStyle.Render("Confidence:"), c.Confidence())
	if c.PendingAction != nil && c.PendingAction.Instruction != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Pending:"), c.PendingAction.Instruction)
	}
	if c.Extraction != nil && c.Extraction.Notes != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Notes:"), c.Extraction.Notes)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Created:"), c.CreatedAt)

	if msg := checkpoint.Message(c); msg != "" {
		fmt.Println()
		fmt.Println(dimStyle.Render("Refresh message the next compacted session would see:"))
		fmt.Println(msg)
	}
	return nil
}
