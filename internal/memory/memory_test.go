package memory

import (
	"strings"
	"testing"
	"time"
)

func TestFromMap_JSONStringFields(t *testing.T) {
	m := FromMap(map[string]any{
		"id":                     "abc123",
		"context":                "Auth implementation",
		"goal":                   "Ship login",
		"active_tasks":           `[{"task":"write handler","status":"in_progress","priority":"high"},"review PR"]`,
		"lessons_learned":        `["bcrypt is slow on purpose"]`,
		"decisions":              `[{"decision":"Use JWT","rationale":"stateless","alternatives":["sessions"]}]`,
		"entities":               `[{"name":"authsvc","type":"service"},"redis"]`,
		"reasoning_chains":       `["Chose bcrypt because OWASP recommends it"]`,
		"agreements_reached":     `["Lead confirmed: Redis for blacklist"]`,
		"disagreements_resolved": `["JWT won over sessions"]`,
		"project_id":             "proj-1",
		"session_id":             "sess-1",
		"created_at":             "2026-08-01T10:00:00+00:00",
	})

	if m.ID != "abc123" || m.Context != "Auth implementation" {
		t.Fatalf("basic fields wrong: %+v", m)
	}
	if len(m.ActiveTasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(m.ActiveTasks))
	}
	if m.ActiveTasks[0].Priority != "high" || m.ActiveTasks[0].Status != "in_progress" {
		t.Errorf("task 0 wrong: %+v", m.ActiveTasks[0])
	}
	if m.ActiveTasks[1].Task != "review PR" || m.ActiveTasks[1].Status != "pending" {
		t.Errorf("string task should default to pending: %+v", m.ActiveTasks[1])
	}
	if len(m.Decisions) != 1 || m.Decisions[0].Rationale != "stateless" {
		t.Errorf("decisions wrong: %+v", m.Decisions)
	}
	if len(m.Decisions[0].Alternatives) != 1 || m.Decisions[0].Alternatives[0] != "sessions" {
		t.Errorf("alternatives wrong: %+v", m.Decisions[0].Alternatives)
	}
	if len(m.Entities) != 2 || m.Entities[1].Name != "redis" {
		t.Errorf("entities wrong: %+v", m.Entities)
	}
	if len(m.ReasoningChains) != 1 || len(m.AgreementsReached) != 1 || len(m.DisagreementsResolved) != 1 {
		t.Errorf("conversation fields wrong: %+v", m)
	}
	if m.CreatedAt.IsZero() {
		t.Error("created_at should parse")
	}
}

func TestFromMap_PlainStringsBecomeSingleItems(t *testing.T) {
	m := FromMap(map[string]any{
		"active_tasks":    "fix the build",
		"lessons_learned": "not json at all",
		"decisions":       "just do it",
		"entities":        "parser",
	})

	if len(m.ActiveTasks) != 1 || m.ActiveTasks[0].Task != "fix the build" {
		t.Errorf("plain task wrong: %+v", m.ActiveTasks)
	}
	if len(m.LessonsLearned) != 1 || m.LessonsLearned[0] != "not json at all" {
		t.Errorf("plain lesson wrong: %+v", m.LessonsLearned)
	}
	if len(m.Decisions) != 1 || m.Decisions[0].Decision != "just do it" {
		t.Errorf("plain decision wrong: %+v", m.Decisions)
	}
	if len(m.Entities) != 1 || m.Entities[0].Name != "parser" {
		t.Errorf("plain entity wrong: %+v", m.Entities)
	}
}

func TestParseStringList(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"json array", `["a","b"]`, []string{"a", "b"}},
		{"json array with null", `["a",null,"b"]`, []string{"a", "b"}},
		{"plain string", "hello", []string{"hello"}},
		{"go slice", []string{"x"}, []string{"x"}},
		{"any slice", []any{"x", nil, 3}, []string{"x", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStringList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	if got := ParseTime("2026-08-01T10:00:00Z"); got.IsZero() {
		t.Error("RFC3339 with Z should parse")
	}
	if got := ParseTime("2026-08-01 10:00:00"); got.IsZero() {
		t.Error("sqlite datetime should parse")
	}
	if got := ParseTime("2026-08-01"); got.IsZero() {
		t.Error("date-only should parse")
	}
	if got := ParseTime("garbage"); !got.IsZero() {
		t.Errorf("garbage should be zero, got %v", got)
	}
	now := time.Now()
	if got := ParseTime(now); !got.Equal(now) {
		t.Error("time.Time passes through")
	}
}

func TestSearchableText(t *testing.T) {
	m := &MemoryObject{
		Context:               "Auth work",
		Goal:                  "Ship login",
		ActiveTasks:           []TaskItem{{Task: "write handler"}},
		LessonsLearned:        []string{"bcrypt is slow"},
		Decisions:             []Decision{{Decision: "Use JWT", Rationale: "stateless"}},
		Entities:              []Entity{{Name: "authsvc", Type: "service"}, {Name: "redis"}},
		ReasoningChains:       []string{"X because Y"},
		AgreementsReached:     []string{"verified via teachback"},
		DisagreementsResolved: []string{"settled on JWT"},
	}
	text := m.SearchableText()

	for _, want := range []string{
		"Context: Auth work",
		"Goal: Ship login",
		"Tasks: write handler",
		"Lessons: bcrypt is slow",
		"Decisions: Use JWT (stateless)",
		"Entities: authsvc (service), redis",
		"Reasoning: X because Y",
		"Agreements: verified via teachback",
		"Disagreements resolved: settled on JWT",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("searchable text missing %q:\n%s", want, text)
		}
	}
}

func TestSearchableText_EmptyFieldsOmitted(t *testing.T) {
	m := &MemoryObject{Context: "only context"}
	text := m.SearchableText()
	if text != "Context: only context" {
		t.Errorf("got %q", text)
	}
}

func TestFormatEntry_ConversationFields(t *testing.T) {
	m := FromMap(map[string]any{
		"context":                "Auth implementation",
		"reasoning_chains":       `["Chose bcrypt because OWASP recommends it"]`,
		"agreements_reached":     `["Lead confirmed: Redis for blacklist"]`,
		"disagreements_resolved": `["JWT won over sessions"]`,
	})
	formatted := FormatEntry(m)

	if !strings.Contains(formatted, "**Reasoning chains**:") {
		t.Error("missing reasoning chains section")
	}
	if !strings.Contains(formatted, "bcrypt") {
		t.Error("missing reasoning content")
	}
	if !strings.Contains(formatted, "**Agreements**:") {
		t.Error("missing agreements section")
	}
	if !strings.Contains(formatted, "Redis") {
		t.Error("missing agreement content")
	}
	if !strings.Contains(formatted, "**Disagreements resolved**:") {
		t.Error("missing disagreements section")
	}
	if !strings.Contains(formatted, "JWT") {
		t.Error("missing disagreement content")
	}
}

func TestFormatEntry_OmitsEmptySections(t *testing.T) {
	m := &MemoryObject{Context: "Simple task"}
	formatted := FormatEntry(m)

	if !strings.Contains(formatted, "Simple task") {
		t.Error("context missing")
	}
	for _, section := range []string{"**Reasoning chains**:", "**Agreements**:", "**Disagreements resolved**:"} {
		if strings.Contains(formatted, section) {
			t.Errorf("empty section %q should be omitted", section)
		}
	}
}

func TestRenderWorkingMemory(t *testing.T) {
	memories := []*MemoryObject{
		{Context: "first"},
		{Context: "second"},
	}
	out := RenderWorkingMemory(memories)
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("missing entries: %s", out)
	}
	if !strings.Contains(out, "\n\n---\n\n") {
		t.Error("entries should be separated")
	}
	if RenderWorkingMemory(nil) != "" {
		t.Error("empty input renders empty")
	}
}
