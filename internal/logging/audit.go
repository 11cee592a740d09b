// Audit logging for hook invocations. Every hook run, checkpoint write,
// guard decision, and store mutation can be replayed from the audit journal
// when debugging a confused session.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies what kind of event is being journaled.
type AuditEventType string

const (
	// Hook lifecycle
	AuditHookInvoke   AuditEventType = "hook_invoke"
	AuditHookComplete AuditEventType = "hook_complete"
	AuditHookError    AuditEventType = "hook_error"

	// Checkpoint pipeline
	AuditCheckpointWrite   AuditEventType = "checkpoint_write"
	AuditCheckpointConsume AuditEventType = "checkpoint_consume"
	AuditCheckpointReject  AuditEventType = "checkpoint_reject"

	// Worktree guard
	AuditGuardAllow AuditEventType = "guard_allow"
	AuditGuardBlock AuditEventType = "guard_block"

	// File-edit journal
	AuditEditRecord   AuditEventType = "edit_record"
	AuditEditConflict AuditEventType = "edit_conflict"

	// Team maintenance
	AuditTeamCleanup AuditEventType = "team_cleanup"

	// Memory store
	AuditMemorySave   AuditEventType = "memory_save"
	AuditMemorySearch AuditEventType = "memory_search"
	AuditMemoryDelete AuditEventType = "memory_delete"

	// Telegram bridge
	AuditNotifySent   AuditEventType = "notify_sent"
	AuditAskResolved  AuditEventType = "ask_resolved"
	AuditAskTimeout   AuditEventType = "ask_timeout"
)

// AuditEvent is one JSONL record in the audit journal.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat"`
	SessionID  string                 `json:"session"`
	Agent      string                 `json:"agent,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger journals structured events scoped to a session/agent.
type AuditLogger struct {
	sessionID string
	agent     string
	category  Category
}

// InitAudit initializes the audit journal. No-op when debug mode is off.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit journal started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit journal file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// AuditWithContext creates a fully-scoped audit logger.
func AuditWithContext(sessionID, agent string, category Category) *AuditLogger {
	return &AuditLogger{
		sessionID: sessionID,
		agent:     agent,
		category:  category,
	}
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}
	if event.Agent == "" && a.agent != "" {
		event.Agent = a.agent
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// HookInvoked journals the start of a hook run.
func (a *AuditLogger) HookInvoked(hook, source string) {
	a.Log(AuditEvent{
		EventType: AuditHookInvoke,
		Category:  string(CategoryHooks),
		Target:    hook,
		Success:   true,
		Fields:    map[string]interface{}{"source": source},
	})
}

// HookCompleted journals a finished hook run.
func (a *AuditLogger) HookCompleted(hook string, dur time.Duration, err error) {
	ev := AuditEvent{
		EventType:  AuditHookComplete,
		Category:   string(CategoryHooks),
		Target:     hook,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
	}
	if err != nil {
		ev.EventType = AuditHookError
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// GuardDecision journals a worktree guard allow/block.
func (a *AuditLogger) GuardDecision(path string, blocked bool, reason string) {
	ev := AuditEvent{
		EventType: AuditGuardAllow,
		Category:  string(CategoryWorktree),
		Target:    path,
		Success:   true,
		Message:   reason,
	}
	if blocked {
		ev.EventType = AuditGuardBlock
	}
	a.Log(ev)
}
