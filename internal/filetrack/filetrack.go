// Package filetrack records which teammate edited which files during a
// team session. The PostToolUse hook appends an entry per Edit/Write
// and warns when a different agent already touched the same file.
// PostToolUse cannot block, so conflicts surface as context warnings.
package filetrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pactd/internal/logging"
)

// Entry is one recorded file edit.
type Entry struct {
	File  string `json:"file"`
	Agent string `json:"agent"`
	Tool  string `json:"tool"`
	TS    int64  `json:"ts"`
}

// Tracker reads and appends the per-team edit journal. A process-level
// mutex guards against concurrent hook invocations in the same process;
// the read-modify-write keeps the file a single JSON array.
type Tracker struct {
	Path string

	mu  sync.Mutex
	now func() int64
}

// New returns a Tracker over the given journal path.
func New(path string) *Tracker {
	return &Tracker{
		Path: path,
		now:  func() int64 { return time.Now().Unix() },
	}
}

// TeamPath returns the journal location for a team.
func TeamPath(teamsDir, team string) string {
	return filepath.Join(teamsDir, team, "file-edits.json")
}

func (t *Tracker) read() []Entry {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if json.Unmarshal(data, &entries) != nil {
		return nil
	}
	return entries
}

// Entries returns the full journal.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

// Record appends an edit to the journal. An empty agent name is
// recorded as the orchestrator, which edits outside any subagent.
func (t *Tracker) Record(filePath, agent, tool string) error {
	if agent == "" {
		agent = "orchestrator"
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.read()
	entries = append(entries, Entry{
		File:  filePath,
		Agent: agent,
		Tool:  tool,
		TS:    t.now(),
	})

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("create tracking dir: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal tracking entries: %w", err)
	}
	if err := os.WriteFile(t.Path, data, 0o644); err != nil {
		return fmt.Errorf("write tracking file: %w", err)
	}
	logging.FiletrackDebug("recorded %s edit of %s by %s", tool, filePath, agent)
	return nil
}

// CheckConflict reports whether another agent already edited the file,
// returning a warning naming the other editors, or "" when clear. Call
// this before Record so an agent's own fresh entry does not mask the
// conflict.
func (t *Tracker) CheckConflict(filePath, agent string) string {
	if agent == "" {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	others := map[string]bool{}
	for _, e := range t.read() {
		if e.File == filePath && e.Agent != agent {
			others[e.Agent] = true
		}
	}
	if len(others) == 0 {
		return ""
	}
	names := make([]string, 0, len(others))
	for name := range others {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf(
		"File conflict: %s was also edited by %s. Consider coordinating via SendMessage to avoid merge conflicts.",
		filePath, strings.Join(names, ", "))
}

// EnvironmentDelta returns files modified by other agents at or after
// the given timestamp, mapped to the editing agent. The boundary is
// inclusive so an edit landing in the same second as a dispatch is not
// lost.
func (t *Tracker) EnvironmentDelta(sinceTS int64, requestingAgent string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := map[string]string{}
	for _, e := range t.read() {
		if e.File == "" || e.Agent == "" {
			continue
		}
		if e.TS >= sinceTS && e.Agent != requestingAgent {
			delta[e.File] = e.Agent
		}
	}
	return delta
}
