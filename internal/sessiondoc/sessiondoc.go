// Package sessiondoc writes per-project markdown snapshots at session
// end so the next session can pick up where the last one stopped.
package sessiondoc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pactd/internal/logging"
	"pactd/internal/teams"
)

// ProjectSlug returns the last path element of the project directory,
// or "" when the project is unknown.
func ProjectSlug(projectDir string) string {
	if projectDir == "" {
		return ""
	}
	return filepath.Base(projectDir)
}

// WriteSnapshot renders the task state into
// <sessionsDir>/<slug>/last-session.md. An empty slug means there is no
// project to attribute the snapshot to and nothing is written.
func WriteSnapshot(tasks []teams.Task, slug, sessionsDir string) error {
	if slug == "" {
		return nil
	}

	var completed, incomplete, blockers []string
	for _, t := range tasks {
		switch {
		case t.IsBlocker() && t.Status != "completed":
			blockers = append(blockers, fmt.Sprintf("- #%s %s", t.ID, t.Subject))
		case t.Status == "completed":
			line := fmt.Sprintf("- #%s %s", t.ID, t.Subject)
			if decisions := t.HandoffDecisions(); len(decisions) > 0 {
				line += " -> " + strings.Join(decisions, "; ")
			}
			completed = append(completed, line)
		default:
			incomplete = append(incomplete, fmt.Sprintf("- #%s %s -- %s", t.ID, t.Subject, t.Status))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Last Session: %s\n\n", slug)
	fmt.Fprintf(&b, "Ended: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	writeSection(&b, "## Completed Tasks", completed)
	writeSection(&b, "## Incomplete Tasks", incomplete)
	writeSection(&b, "## Unresolved Blockers", blockers)

	dir := filepath.Join(sessionsDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	path := filepath.Join(dir, "last-session.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logging.SessionDebug("wrote snapshot %s (%d tasks)", path, len(tasks))
	return nil
}

func writeSection(b *strings.Builder, header string, lines []string) {
	b.WriteString(header + "\n")
	if len(lines) == 0 {
		b.WriteString("- (none)\n")
	} else {
		for _, l := range lines {
			b.WriteString(l + "\n")
		}
	}
	b.WriteString("\n")
}

// ReadSnapshot returns the last-session markdown for a project slug,
// or "" when none exists.
func ReadSnapshot(slug, sessionsDir string) string {
	if slug == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(sessionsDir, slug, "last-session.md"))
	if err != nil {
		return ""
	}
	return string(data)
}
