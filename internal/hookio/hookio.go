// Package hookio reads and writes the JSON envelope exchanged with the
// Claude Code hook runner. Hooks receive a single JSON object on stdin
// and may emit a hookSpecificOutput object on stdout. Everything else
// (diagnostics, errors) must stay off stdout or the runner will try to
// parse it.
package hookio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxStdinBytes caps hook input reads. Transcripts are passed by path,
// not inline, so a legitimate payload is far below this.
const maxStdinBytes = 1 << 20

// Input is the hook invocation payload. Fields are populated per event:
// Source only on SessionStart and PreCompact, ToolName and ToolInput
// only on the tool hooks, AgentType and AgentName only on SubagentStart.
type Input struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	CWD            string          `json:"cwd"`
	HookEventName  string          `json:"hook_event_name"`
	Source         string          `json:"source"`
	ToolName       string          `json:"tool_name"`
	ToolInput      map[string]any  `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
	AgentID        string          `json:"agent_id"`
	AgentType      string          `json:"agent_type"`
	AgentName      string          `json:"agent_name"`
}

// ToolInputString returns a string field from the tool input payload,
// or "" when absent or not a string.
func (in *Input) ToolInputString(key string) string {
	if in == nil || in.ToolInput == nil {
		return ""
	}
	s, _ := in.ToolInput[key].(string)
	return s
}

// FilePath returns the file targeted by a Write/Edit style tool call.
func (in *Input) FilePath() string {
	return in.ToolInputString("file_path")
}

// Read parses a hook invocation from r. Malformed or empty input yields
// an error; callers normally treat that as "nothing to do" and exit 0.
func Read(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxStdinBytes))
	if err != nil {
		return nil, fmt.Errorf("read hook input: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty hook input")
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse hook input: %w", err)
	}
	return &in, nil
}

// ReadStdin is Read against os.Stdin.
func ReadStdin() (*Input, error) {
	return Read(os.Stdin)
}

// Output is the top-level hook response envelope.
type Output struct {
	HookSpecificOutput *SpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// SpecificOutput carries the event-specific response fields. Only the
// fields relevant to the event should be set.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// WriteAdditionalContext emits an additionalContext response. An empty
// context writes nothing, so callers can pass through unconditionally.
func WriteAdditionalContext(w io.Writer, event, context string) error {
	if context == "" {
		return nil
	}
	return writeOutput(w, &Output{
		HookSpecificOutput: &SpecificOutput{
			HookEventName:     event,
			AdditionalContext: context,
		},
	})
}

// WriteDeny emits a PreToolUse permission denial with the given reason.
func WriteDeny(w io.Writer, event, reason string) error {
	return writeOutput(w, &Output{
		HookSpecificOutput: &SpecificOutput{
			HookEventName:            event,
			PermissionDecision:       "deny",
			PermissionDecisionReason: reason,
		},
	})
}

func writeOutput(w io.Writer, out *Output) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}
