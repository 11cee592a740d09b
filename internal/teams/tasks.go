package teams

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Task is one task file under the team's task directory.
type Task struct {
	ID       string         `json:"id"`
	Subject  string         `json:"subject"`
	Status   string         `json:"status"`
	Owner    string         `json:"owner,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Handoff returns the metadata.handoff object, or nil.
func (t Task) Handoff() map[string]any {
	if t.Metadata == nil {
		return nil
	}
	h, _ := t.Metadata["handoff"].(map[string]any)
	return h
}

// HandoffDecisions returns metadata.handoff.decisions as strings.
func (t Task) HandoffDecisions() []string {
	h := t.Handoff()
	if h == nil {
		return nil
	}
	raw, _ := h["decisions"].([]any)
	var out []string
	for _, d := range raw {
		if s, ok := d.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// IsBlocker reports whether the task is typed as a blocker.
func (t Task) IsBlocker() bool {
	if t.Metadata == nil {
		return false
	}
	typ, _ := t.Metadata["type"].(string)
	return typ == "blocker"
}

// phasePrefixes mark phase tasks in the standard Prepare, Architect,
// Code, Test progression.
var phasePrefixes = []string{"PREPARE:", "ARCHITECT:", "CODE:", "TEST:"}

func hasPhasePrefix(subject string) bool {
	for _, p := range phasePrefixes {
		if strings.HasPrefix(subject, p) {
			return true
		}
	}
	return false
}

// TaskList reads all task JSON files for a team, ordered by numeric ID
// where possible. Unreadable files are skipped.
func (m *Manager) TaskList(team string) []Task {
	if team == "" {
		return nil
	}
	dir := filepath.Join(m.TasksDir, team)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var tasks []Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var t Task
		if json.Unmarshal(data, &t) != nil {
			continue
		}
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		a, aerr := strconv.Atoi(tasks[i].ID)
		b, berr := strconv.Atoi(tasks[j].ID)
		if aerr == nil && berr == nil {
			return a < b
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// FindFeatureTask returns the top-level feature task, the first one
// whose subject has no phase prefix and that is not a blocker.
func FindFeatureTask(tasks []Task) *Task {
	for i := range tasks {
		if !hasPhasePrefix(tasks[i].Subject) && !tasks[i].IsBlocker() {
			return &tasks[i]
		}
	}
	return nil
}

// FindCurrentPhase returns the in-progress phase task, or nil when no
// phase is underway.
func FindCurrentPhase(tasks []Task) *Task {
	for i := range tasks {
		if tasks[i].Status == "in_progress" && hasPhasePrefix(tasks[i].Subject) {
			return &tasks[i]
		}
	}
	return nil
}

// FindActiveAgents returns the distinct owners of in-progress tasks.
func FindActiveAgents(tasks []Task) []string {
	seen := make(map[string]bool)
	var agents []string
	for _, t := range tasks {
		if t.Status != "in_progress" || t.Owner == "" || seen[t.Owner] {
			continue
		}
		seen[t.Owner] = true
		agents = append(agents, t.Owner)
	}
	return agents
}

// FindBlockers returns unresolved blocker tasks.
func FindBlockers(tasks []Task) []Task {
	var blockers []Task
	for _, t := range tasks {
		if t.IsBlocker() && t.Status != "completed" {
			blockers = append(blockers, t)
		}
	}
	return blockers
}
