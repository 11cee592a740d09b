package memory

import (
	"fmt"
	"strings"
)

// FormatEntry renders one memory as a markdown block for context injection.
// Sections are omitted when their field is empty.
func FormatEntry(m *MemoryObject) string {
	var b strings.Builder

	if m.Context != "" {
		fmt.Fprintf(&b, "**Context**: %s\n", m.Context)
	}
	if m.Goal != "" {
		fmt.Fprintf(&b, "**Goal**: %s\n", m.Goal)
	}
	if len(m.ActiveTasks) > 0 {
		b.WriteString("**Active tasks**:\n")
		for _, t := range m.ActiveTasks {
			fmt.Fprintf(&b, "- %s (%s)\n", t.Task, t.Status)
		}
	}
	if len(m.LessonsLearned) > 0 {
		b.WriteString("**Lessons learned**:\n")
		writeBullets(&b, m.LessonsLearned)
	}
	if len(m.Decisions) > 0 {
		b.WriteString("**Decisions**:\n")
		for _, d := range m.Decisions {
			if d.Rationale != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", d.Decision, d.Rationale)
			} else {
				fmt.Fprintf(&b, "- %s\n", d.Decision)
			}
		}
	}
	if len(m.ReasoningChains) > 0 {
		b.WriteString("**Reasoning chains**:\n")
		writeBullets(&b, m.ReasoningChains)
	}
	if len(m.AgreementsReached) > 0 {
		b.WriteString("**Agreements**:\n")
		writeBullets(&b, m.AgreementsReached)
	}
	if len(m.DisagreementsResolved) > 0 {
		b.WriteString("**Disagreements resolved**:\n")
		writeBullets(&b, m.DisagreementsResolved)
	}
	if len(m.Files) > 0 {
		fmt.Fprintf(&b, "**Files**: %s\n", strings.Join(m.Files, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderWorkingMemory joins recent memories into one injection block.
func RenderWorkingMemory(memories []*MemoryObject) string {
	if len(memories) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(memories))
	for _, m := range memories {
		if entry := FormatEntry(m); entry != "" {
			blocks = append(blocks, entry)
		}
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
