// Package memory defines the rich memory objects persisted by the store:
// saved context, goals, tasks, lessons, decisions, entity references, and
// the conversation fields (reasoning chains, agreements, disagreements).
// Parsing is deliberately lenient because rows written by older versions
// may hold plain strings where newer versions hold JSON lists.
package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskItem is a task tracked inside a memory.
type TaskItem struct {
	Task     string `json:"task"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
}

// Decision records a choice made during development.
type Decision struct {
	Decision     string   `json:"decision"`
	Rationale    string   `json:"rationale,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Entity is a component, service, or module referenced by a memory.
type Entity struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// MemoryObject is the primary structure for saved context.
type MemoryObject struct {
	ID                    string
	Context               string
	Goal                  string
	ActiveTasks           []TaskItem
	LessonsLearned        []string
	Decisions             []Decision
	Entities              []Entity
	ReasoningChains       []string
	AgreementsReached     []string
	DisagreementsResolved []string
	Files                 []string
	ProjectID             string
	SessionID             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// FromMap builds a MemoryObject from loosely-typed data, typically a
// database row where list fields arrive as JSON strings. Plain strings
// become single-element lists and nil entries are dropped.
func FromMap(data map[string]any) *MemoryObject {
	m := &MemoryObject{
		ID:        str(data["id"]),
		Context:   str(data["context"]),
		Goal:      str(data["goal"]),
		ProjectID: str(data["project_id"]),
		SessionID: str(data["session_id"]),
	}
	m.ActiveTasks = parseTasks(data["active_tasks"])
	m.LessonsLearned = ParseStringList(data["lessons_learned"])
	m.Decisions = parseDecisions(data["decisions"])
	m.Entities = parseEntities(data["entities"])
	m.ReasoningChains = ParseStringList(data["reasoning_chains"])
	m.AgreementsReached = ParseStringList(data["agreements_reached"])
	m.DisagreementsResolved = ParseStringList(data["disagreements_resolved"])
	m.Files = ParseStringList(data["files"])
	m.CreatedAt = ParseTime(data["created_at"])
	m.UpdatedAt = ParseTime(data["updated_at"])
	return m
}

// SearchableText concatenates the key fields into one block suitable for
// embedding generation.
func (m *MemoryObject) SearchableText() string {
	var parts []string

	if m.Context != "" {
		parts = append(parts, "Context: "+m.Context)
	}
	if m.Goal != "" {
		parts = append(parts, "Goal: "+m.Goal)
	}
	if len(m.ActiveTasks) > 0 {
		tasks := make([]string, len(m.ActiveTasks))
		for i, t := range m.ActiveTasks {
			tasks[i] = t.Task
		}
		parts = append(parts, "Tasks: "+strings.Join(tasks, "; "))
	}
	if len(m.LessonsLearned) > 0 {
		parts = append(parts, "Lessons: "+strings.Join(m.LessonsLearned, "; "))
	}
	if len(m.Decisions) > 0 {
		texts := make([]string, len(m.Decisions))
		for i, d := range m.Decisions {
			text := d.Decision
			if d.Rationale != "" {
				text += " (" + d.Rationale + ")"
			}
			texts[i] = text
		}
		parts = append(parts, "Decisions: "+strings.Join(texts, "; "))
	}
	if len(m.Entities) > 0 {
		names := make([]string, len(m.Entities))
		for i, e := range m.Entities {
			if e.Type != "" {
				names[i] = e.Name + " (" + e.Type + ")"
			} else {
				names[i] = e.Name
			}
		}
		parts = append(parts, "Entities: "+strings.Join(names, ", "))
	}
	if len(m.ReasoningChains) > 0 {
		parts = append(parts, "Reasoning: "+strings.Join(m.ReasoningChains, "; "))
	}
	if len(m.AgreementsReached) > 0 {
		parts = append(parts, "Agreements: "+strings.Join(m.AgreementsReached, "; "))
	}
	if len(m.DisagreementsResolved) > 0 {
		parts = append(parts, "Disagreements resolved: "+strings.Join(m.DisagreementsResolved, "; "))
	}

	return strings.Join(parts, "\n")
}

// ParseStringList decodes a field expected to hold a list of strings.
// Accepts nil, []string, []any, or a string (JSON array or plain text).
func ParseStringList(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, str(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return []string{v}
		}
		out := make([]string, 0, len(parsed))
		for _, item := range parsed {
			if item == nil {
				continue
			}
			out = append(out, str(item))
		}
		return out
	default:
		return nil
	}
}

// ParseTime decodes RFC3339 and the common SQLite datetime formats.
func ParseTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		s := strings.Replace(v, "Z", "+00:00", 1)
		for _, layout := range []string{
			"2006-01-02T15:04:05.999999999-07:00",
			"2006-01-02T15:04:05-07:00",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func parseTasks(raw any) []TaskItem {
	var out []TaskItem
	for _, item := range itemList(raw, "task") {
		switch v := item.(type) {
		case string:
			out = append(out, TaskItem{Task: v, Status: "pending"})
		case map[string]any:
			t := TaskItem{
				Task:     str(v["task"]),
				Status:   str(v["status"]),
				Priority: str(v["priority"]),
			}
			if t.Status == "" {
				t.Status = "pending"
			}
			out = append(out, t)
		}
	}
	return out
}

func parseDecisions(raw any) []Decision {
	var out []Decision
	for _, item := range itemList(raw, "decision") {
		switch v := item.(type) {
		case string:
			out = append(out, Decision{Decision: v})
		case map[string]any:
			out = append(out, Decision{
				Decision:     str(v["decision"]),
				Rationale:    str(v["rationale"]),
				Alternatives: ParseStringList(v["alternatives"]),
			})
		}
	}
	return out
}

func parseEntities(raw any) []Entity {
	var out []Entity
	for _, item := range itemList(raw, "name") {
		switch v := item.(type) {
		case string:
			out = append(out, Entity{Name: v})
		case map[string]any:
			out = append(out, Entity{
				Name:  str(v["name"]),
				Type:  str(v["type"]),
				Notes: str(v["notes"]),
			})
		}
	}
	return out
}

// itemList normalizes a raw field into a slice of items, decoding JSON
// strings and wrapping a plain string as a single map keyed by wrapKey.
func itemList(raw any, wrapKey string) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return dropNils(v)
	case string:
		if v == "" {
			return nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return []any{map[string]any{wrapKey: v}}
		}
		if list, ok := parsed.([]any); ok {
			return dropNils(list)
		}
		return []any{map[string]any{wrapKey: v}}
	default:
		return nil
	}
}

func dropNils(list []any) []any {
	out := make([]any, 0, len(list))
	for _, item := range list {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
