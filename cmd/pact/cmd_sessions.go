package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/sessiondoc"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect session snapshots",
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last-session snapshot for the current project",
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	slug := sessiondoc.ProjectSlug(config.ProjectDir())
	if slug == "" {
		return fmt.Errorf("no project directory (set CLAUDE_PROJECT_DIR or run from a project)")
	}

	doc := sessiondoc.ReadSnapshot(slug, cfg.Paths.SessionsDir)
	if doc == "" {
		fmt.Printf("No session snapshot for %s yet.\n", slug)
		return nil
	}
	fmt.Print(renderMarkdown(doc))
	return nil
}

// renderMarkdown pretty-prints markdown for the terminal, falling back
// to the raw text when the renderer cannot be constructed.
func renderMarkdown(doc string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return doc
	}
	out, err := renderer.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
