// Package teams inspects and manages the on-disk Agent Teams state under
// the Claude config directory. Hooks cannot call team tools directly, so
// this package reads team config files and generates text instructions
// for the orchestrator to act on.
package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"pactd/internal/logging"
)

// Member is one entry in a team's config.json members array.
type Member struct {
	Name      string `json:"name"`
	AgentType string `json:"agentType,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Active reports whether the member is currently running.
func (m Member) Active() bool {
	return m.Status == "active"
}

// memberType returns the agent type, tolerating both key spellings the
// config writer has used over time.
func (m Member) memberType() string {
	if m.AgentType != "" {
		return m.AgentType
	}
	return m.Type
}

// Config is the team config.json shape.
type Config struct {
	Name    string   `json:"name,omitempty"`
	Members []Member `json:"members"`
}

// Manager reads and mutates team state rooted at TeamsDir, with task
// files under TasksDir. Branch is swappable for tests and defaults to a
// git lookup in the current directory.
type Manager struct {
	TeamsDir string
	TasksDir string
	Branch   func() string
}

// New returns a Manager over the given directories.
func New(teamsDir, tasksDir string) *Manager {
	return &Manager{
		TeamsDir: teamsDir,
		TasksDir: tasksDir,
		Branch:   CurrentBranch,
	}
}

var (
	branchPrefixes = []string{"feature/", "bugfix/", "hotfix/", "fix/", "chore/", "release/"}
	unsafeChars    = regexp.MustCompile(`[/\\._]+`)
	multiHyphen    = regexp.MustCompile(`-{2,}`)
)

// DeriveTeamName maps a git branch name to a team name. Common branch
// prefixes are stripped and path separators become hyphens, so
// "feature/v3-agent-teams" derives "v3-agent-teams". An empty or fully
// stripped branch falls back to "pact-session".
func DeriveTeamName(branch string) string {
	if branch == "" {
		return "pact-session"
	}
	name := branch
	for _, p := range branchPrefixes {
		if strings.HasPrefix(name, p) {
			name = name[len(p):]
			break
		}
	}
	name = unsafeChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	name = multiHyphen.ReplaceAllString(name, "-")
	if name == "" {
		return "pact-session"
	}
	return name
}

// CurrentBranch returns the checked-out git branch, or "" outside a repo.
func CurrentBranch() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (m *Manager) configPath(team string) string {
	return filepath.Join(m.TeamsDir, team, "config.json")
}

// Exists reports whether a team directory is present on disk.
func (m *Manager) Exists(team string) bool {
	if team == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(m.TeamsDir, team))
	return err == nil && info.IsDir()
}

// Members reads the team's member list. Missing or unreadable config
// yields an empty list.
func (m *Manager) Members(team string) []Member {
	cfg, err := m.readConfig(team)
	if err != nil {
		return nil
	}
	return cfg.Members
}

func (m *Manager) readConfig(team string) (*Config, error) {
	data, err := os.ReadFile(m.configPath(team))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ActiveMembers filters the team's members to those with active status.
func (m *Manager) ActiveMembers(team string) []Member {
	var active []Member
	for _, mem := range m.Members(team) {
		if mem.Active() {
			active = append(active, mem)
		}
	}
	return active
}

// ActiveTeams lists all team directories, sorted by name.
func (m *Manager) ActiveTeams() []string {
	entries, err := os.ReadDir(m.TeamsDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Instruction renders the SessionStart team bootstrap text for the
// orchestrator. The shape depends on the session source: a compact
// restart with a surviving team reminds the orchestrator its teammates
// are still running, a resume with stale config asks for a re-spawn,
// and a fresh session gets a TeamCreate instruction. Without a git
// branch there is nothing to derive a team from and no instruction is
// emitted.
func (m *Manager) Instruction(source string) string {
	branch := ""
	if m.Branch != nil {
		branch = m.Branch()
	}
	if branch == "" {
		return ""
	}
	team := DeriveTeamName(branch)

	switch {
	case source == "compact" && m.Exists(team):
		return fmt.Sprintf(
			"Team '%s' survived compaction. Teammates are independent processes and are still running. "+
				"Do NOT create a new team. Use SendMessage to re-sync with them.", team)
	case source == "resume" && m.Exists(team):
		return fmt.Sprintf(
			"Team config exists for '%s' but teammates are NOT running after a resume. "+
				"Re-spawn any teammates you still need before delegating work.", team)
	default:
		return fmt.Sprintf(
			"No team found for branch '%s'. Create one with TeamCreate(team_name='%s') before "+
				"delegating. TeamCreate is idempotent so calling it again is safe.", branch, team)
	}
}

// PeerContext builds the SubagentStart context string listing a newly
// spawned agent's teammates. Returns "" when there is no team to report.
func (m *Manager) PeerContext(agentType, team string) string {
	if team == "" {
		return ""
	}
	cfg, err := m.readConfig(team)
	if err != nil {
		return ""
	}
	var peers []string
	for _, mem := range cfg.Members {
		if mem.memberType() != agentType {
			peers = append(peers, mem.Name)
		}
	}
	if len(peers) == 0 {
		return "You are the only active teammate on this team."
	}
	return fmt.Sprintf(
		"Active teammates on your team: %s\nYou can message them via SendMessage for shared artifacts or blocking questions.",
		strings.Join(peers, ", "))
}

// CleanupStale removes pact-* team directories that are defunct: no
// config.json, or a member list of at most one (just the lead). The
// matching task directory is removed alongside. Teams with corrupt
// configs are left alone rather than guessed at. Returns the names of
// removed teams.
func (m *Manager) CleanupStale() []string {
	entries, err := os.ReadDir(m.TeamsDir)
	if err != nil {
		return []string{}
	}

	cleaned := []string{}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "pact-") {
			continue
		}
		name := e.Name()
		cfgPath := m.configPath(name)

		data, err := os.ReadFile(cfgPath)
		if err == nil {
			var cfg Config
			if json.Unmarshal(data, &cfg) != nil {
				continue
			}
			if len(cfg.Members) > 1 {
				continue
			}
		} else if !os.IsNotExist(err) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(m.TeamsDir, name)); err != nil {
			logging.TeamsDebug("cleanup failed for %s: %v", name, err)
			continue
		}
		if m.TasksDir != "" {
			os.RemoveAll(filepath.Join(m.TasksDir, name))
		}
		logging.Teams("cleaned up stale team %s", name)
		cleaned = append(cleaned, name)
	}
	return cleaned
}
