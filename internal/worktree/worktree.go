// Package worktree enforces the per-session worktree boundary. When a
// session pins itself to a git worktree, application code edits outside
// that tree are denied at PreToolUse so parallel sessions cannot clobber
// each other. Tooling and documentation paths stay writable everywhere.
package worktree

import (
	"fmt"
	"path/filepath"
	"strings"

	"pactd/internal/logging"
)

// CheckBoundary decides whether an Edit/Write targeting filePath is
// allowed for a session bound to worktreePath. It returns a denial
// reason, or "" to allow. An empty worktree path means no boundary is
// active and everything is allowed.
func CheckBoundary(filePath, worktreePath string) string {
	if worktreePath == "" || filePath == "" {
		return ""
	}

	if inside(filePath, worktreePath) {
		return ""
	}
	if isExempt(filePath) {
		logging.WorktreeDebug("exempt path outside worktree: %s", filePath)
		return ""
	}

	reason := fmt.Sprintf(
		"Edit to %s is outside worktree %s. Application code changes must stay in the active worktree; use the worktree copy of this file instead.",
		filePath, worktreePath)
	logging.Worktree("blocked edit outside worktree: %s", filePath)
	return reason
}

func inside(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// isExempt reports whether the path may be written regardless of the
// worktree boundary: AI tooling state under .claude/, documentation
// under docs/, and CLAUDE.md files.
func isExempt(path string) bool {
	if filepath.Base(path) == "CLAUDE.md" {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".claude" || seg == "docs" {
			return true
		}
	}
	return false
}
