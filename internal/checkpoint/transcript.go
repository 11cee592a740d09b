// Package checkpoint implements the compaction refresh pipeline: the
// PreCompact hook scans the session transcript for an in-flight PACT
// workflow and persists a checkpoint, and the SessionStart hook turns
// that checkpoint back into a resume message after auto-compaction.
package checkpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxScanLines bounds how much transcript tail is parsed. Workflow
// state lives near the end of the conversation, so older lines carry
// no signal worth the parse cost.
const maxScanLines = 5000

// ToolCall is one tool_use block in an assistant turn.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// InputString returns a string field from the tool input, or "".
func (tc *ToolCall) InputString(key string) string {
	if tc == nil {
		return ""
	}
	s, _ := tc.Input[key].(string)
	return s
}

// Turn is one parsed transcript line: a user or assistant message with
// its flattened text and any tool calls.
type Turn struct {
	Type      string
	Content   string
	Line      int
	Timestamp string
	ToolCalls []ToolCall
}

// ToolCall returns the first tool call with the given name, or nil.
func (t *Turn) ToolCall(name string) *ToolCall {
	for i := range t.ToolCalls {
		if t.ToolCalls[i].Name == name {
			return &t.ToolCalls[i]
		}
	}
	return nil
}

// HasTeamCreate reports whether the turn calls the TeamCreate tool.
func (t *Turn) HasTeamCreate() bool {
	return t.ToolCall("TeamCreate") != nil
}

// hasTeamInteraction reports whether the turn touches the team layer,
// either creating the team or messaging a teammate.
func (t *Turn) hasTeamInteraction() bool {
	return t.ToolCall("TeamCreate") != nil || t.ToolCall("SendMessage") != nil
}

// transcriptLine is the raw JSONL shape of a Claude Code transcript
// entry. Content is either a plain string or a list of typed blocks.
type transcriptLine struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ParseTranscript reads a session transcript and returns the parsed
// turns along with the number of lines scanned. Lines that fail to
// parse are skipped; transcripts routinely contain entry types this
// package does not care about.
func ParseTranscript(path string) ([]Turn, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw = append(raw, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan transcript: %w", err)
	}

	offset := 0
	if len(raw) > maxScanLines {
		offset = len(raw) - maxScanLines
		raw = raw[offset:]
	}

	var turns []Turn
	for i, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry transcriptLine
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		turn := Turn{
			Type:      entry.Type,
			Line:      offset + i + 1,
			Timestamp: entry.Timestamp,
		}
		parseContent(&turn, entry.Message.Content)
		turns = append(turns, turn)
	}
	return turns, len(raw), nil
}

func parseContent(turn *Turn, content json.RawMessage) {
	if len(content) == 0 {
		return
	}

	var text string
	if json.Unmarshal(content, &text) == nil {
		turn.Content = text
		return
	}

	var blocks []contentBlock
	if json.Unmarshal(content, &blocks) != nil {
		return
	}
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{Name: b.Name, Input: b.Input})
		}
	}
	turn.Content = strings.Join(parts, "\n")
}

// SendMessageRef pairs a SendMessage tool call with the index of the
// turn it appeared in.
type SendMessageRef struct {
	TurnIndex int
	Call      *ToolCall
}

// FindSendMessages returns every SendMessage tool call in turn order.
func FindSendMessages(turns []Turn) []SendMessageRef {
	var refs []SendMessageRef
	for i := range turns {
		for j := range turns[i].ToolCalls {
			if turns[i].ToolCalls[j].Name == "SendMessage" {
				refs = append(refs, SendMessageRef{TurnIndex: i, Call: &turns[i].ToolCalls[j]})
			}
		}
	}
	return refs
}

// CountTeamInteractions counts turns at or after the given index that
// create the team or message a teammate.
func CountTeamInteractions(turns []Turn, afterIndex int) int {
	count := 0
	for i := afterIndex; i < len(turns); i++ {
		if turns[i].hasTeamInteraction() {
			count++
		}
	}
	return count
}
