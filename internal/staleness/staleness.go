// Package staleness scans the project CLAUDE.md's Pinned Context
// section for entries that outlived their usefulness. Entries
// referencing PRs merged long ago get an HTML comment marker so the
// user can archive them; nothing is ever deleted automatically. The
// section's size is also checked against a token budget.
package staleness

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"pactd/internal/logging"
)

const (
	// StaleDays is how long after a PR merge a pinned entry stays
	// relevant before it gets marked.
	StaleDays = 30

	// TokenBudget caps the estimated token size of the whole Pinned
	// Context section before a warning comment is added.
	TokenBudget = 1200
)

var (
	pinnedHeading = regexp.MustCompile(`(?m)^## Pinned Context\s*\n`)
	nextSection   = regexp.MustCompile(`(?m)^#{1,2}\s`)
	entryHeading  = regexp.MustCompile(`(?m)^### `)
	prMerged      = regexp.MustCompile(`PR\s*#\d+,?\s*merged\s+(\d{4}-\d{2}-\d{2})`)
	staleMarker   = regexp.MustCompile(`<!-- STALE: Last relevant \d{4}-\d{2}-\d{2} -->`)
)

// ProjectClaudeMD resolves the project CLAUDE.md path from the project
// directory, or "" when it does not exist.
func ProjectClaudeMD(projectDir string) string {
	if projectDir == "" {
		return ""
	}
	path := filepath.Join(projectDir, "CLAUDE.md")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// EstimateTokens approximates token count as words times 1.3.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}

// CheckPinned scans the Pinned Context section of the given CLAUDE.md,
// marks newly stale entries in place, and returns an informational
// message about what it found, or "" when there is nothing to report.
// Re-running is idempotent; already marked entries are counted but not
// re-marked.
func CheckPinned(path string, days int, budget int, now time.Time) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	content := string(raw)

	loc := pinnedHeading.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	start := loc[1]
	end := len(content)
	if next := nextSection.FindStringIndex(content[start:]); next != nil {
		end = start + next[0]
	}
	pinned := content[start:end]
	if strings.TrimSpace(pinned) == "" {
		return ""
	}

	entryStarts := entryHeading.FindAllStringIndex(pinned, -1)
	if len(entryStarts) == 0 {
		return ""
	}

	threshold := now.AddDate(0, 0, -days)
	staleCount := 0
	modified := false

	// Walk entries back to front so earlier offsets stay valid while
	// markers are inserted.
	for i := len(entryStarts) - 1; i >= 0; i-- {
		entryStart := entryStarts[i][0]
		entryEnd := len(pinned)
		if i+1 < len(entryStarts) {
			entryEnd = entryStarts[i+1][0]
		}
		entry := pinned[entryStart:entryEnd]

		if staleMarker.MatchString(entry) {
			staleCount++
			continue
		}

		m := prMerged.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		merged, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		if !merged.Before(threshold) {
			continue
		}

		nl := strings.Index(entry, "\n")
		if nl == -1 {
			continue
		}
		marker := fmt.Sprintf("<!-- STALE: Last relevant %s -->\n", m[1])
		marked := entry[:nl+1] + marker + entry[nl+1:]
		pinned = pinned[:entryStart] + marked + pinned[entryEnd:]
		staleCount++
		modified = true
	}

	tokens := EstimateTokens(pinned)
	budgetNote := ""
	if tokens > budget {
		if !strings.Contains(pinned, "<!-- WARNING: Pinned context") {
			warning := fmt.Sprintf(
				"<!-- WARNING: Pinned context ~%d tokens (budget: %d). Consider archiving stale pins. -->\n",
				tokens, budget)
			pinned = warning + pinned
			modified = true
		}
		budgetNote = fmt.Sprintf(", ~%d tokens (budget: %d)", tokens, budget)
	}

	if modified {
		updated := content[:start] + pinned + content[end:]
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			logging.Staleness("failed to update pinned markers in %s: %v", path, err)
			return fmt.Sprintf("Failed to update pinned staleness: %v", err)
		}
	}

	switch {
	case staleCount > 0:
		return fmt.Sprintf("Pinned context: %d stale pin(s) detected%s", staleCount, budgetNote)
	case budgetNote != "":
		return "Pinned context" + budgetNote
	}
	return ""
}
