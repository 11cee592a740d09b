package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pactd/internal/config"
)

const (
	// MaxButtons caps the inline keyboard size Telegram renders sanely.
	MaxButtons = 8

	DefaultAskTimeout = 300 * time.Second
	minAskTimeout     = 10 * time.Second
	maxAskTimeout     = 600 * time.Second
)

// api is the Bot API surface the bridge needs. Tests substitute a fake.
type api interface {
	SendMessage(ctx context.Context, text, parseMode string) (int64, error)
	SendMessageWithButtons(ctx context.Context, text string, buttons []string) (int64, error)
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Bridge holds the shared state for notify, ask, and status operations.
// Pending asks are tracked as reply channels keyed by message id; the poll
// loop resolves them when the user answers.
type Bridge struct {
	client     api
	configured bool
	startTime  time.Time
	warnings   []string
	teamsDir   string
	log        *zap.SugaredLogger

	mu      sync.Mutex
	pending map[int64]chan string
	closed  bool

	teamsMu     sync.Mutex
	activeTeams []string
}

// New creates a bridge from configuration. Missing credentials produce an
// unconfigured bridge whose operations report that state instead of failing.
func New(cfg config.TelegramConfig, teamsDir string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		startTime: time.Now(),
		teamsDir:  teamsDir,
		log:       logger.Sugar(),
		pending:   make(map[int64]chan string),
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return b
	}
	b.client = NewClient(cfg.BotToken, cfg.ChatID)
	b.configured = true
	return b
}

// Configured reports whether credentials were provided.
func (b *Bridge) Configured() bool {
	return b.configured
}

// AddWarning records a configuration warning for status output.
func (b *Bridge) AddWarning(w string) {
	b.warnings = append(b.warnings, w)
}

const notConfiguredMsg = "Telegram bridge is not configured. Set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID, or run the telegram-setup skill."

// Notify sends a one-way message and returns a human-readable outcome.
func (b *Bridge) Notify(ctx context.Context, text, parseMode string) string {
	if !b.configured {
		return notConfiguredMsg
	}
	id, err := b.client.SendMessage(ctx, text, parseMode)
	if err != nil {
		b.log.Warnw("notify failed", "error", err)
		return fmt.Sprintf("Failed to send message: %v", err)
	}
	return fmt.Sprintf("Message sent (id %d).", id)
}

// Ask sends a question and blocks until the user replies or the timeout
// expires. Options render as inline buttons, truncated to MaxButtons. The
// timeout is clamped to [10s, 600s] before any network call; zero means the
// default 300s.
func (b *Bridge) Ask(ctx context.Context, question string, options []string, timeout time.Duration) string {
	if !b.configured {
		return notConfiguredMsg
	}
	timeout = ClampAskTimeout(timeout)

	var msgID int64
	var err error
	if len(options) > 0 {
		buttons := options
		if len(buttons) > MaxButtons {
			b.log.Debugw("truncating ask options", "given", len(options), "max", MaxButtons)
			buttons = buttons[:MaxButtons]
		}
		msgID, err = b.client.SendMessageWithButtons(ctx, question, buttons)
	} else {
		msgID, err = b.client.SendMessage(ctx, question, "")
	}
	if err != nil {
		b.log.Warnw("ask send failed", "error", err)
		return fmt.Sprintf("Failed to send question: %v", err)
	}

	ch := make(chan string, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "Ask cancelled: bridge is shutting down."
	}
	b.pending[msgID] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, msgID)
		b.mu.Unlock()
	}()

	select {
	case reply, ok := <-ch:
		if !ok {
			return "Ask cancelled: bridge is shutting down."
		}
		return reply
	case <-time.After(timeout):
		return fmt.Sprintf("No reply received within %s.", formatDuration(timeout))
	case <-ctx.Done():
		return "Ask cancelled: bridge is shutting down."
	}
}

// ResolveReply delivers a user reply to the ask waiting on messageID.
// Returns false when no ask is pending for that id (including one already
// answered).
func (b *Bridge) ResolveReply(messageID int64, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.pending[messageID]
	if !ok {
		return false
	}
	delete(b.pending, messageID)
	ch <- text
	return true
}

// PendingCount returns the number of unanswered asks.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close cancels every pending ask. Safe to call without a client.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

// Status renders the bridge health summary.
func (b *Bridge) Status() string {
	if !b.configured {
		return notConfiguredMsg + "\nStatus: NOT CONFIGURED"
	}

	var sb strings.Builder
	sb.WriteString("Status: CONNECTED\n")
	fmt.Fprintf(&sb, "Uptime: %s\n", formatDuration(time.Since(b.startTime)))
	fmt.Fprintf(&sb, "Pending questions: %d\n", b.PendingCount())

	b.teamsMu.Lock()
	teams := append([]string(nil), b.activeTeams...)
	b.teamsMu.Unlock()
	if len(teams) > 0 {
		fmt.Fprintf(&sb, "Active teams: %s\n", strings.Join(teams, ", "))
	}

	if len(b.warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range b.warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// setActiveTeams replaces the roster snapshot shown by Status.
func (b *Bridge) setActiveTeams(teams []string) {
	sort.Strings(teams)
	b.teamsMu.Lock()
	b.activeTeams = teams
	b.teamsMu.Unlock()
}

// ClampAskTimeout bounds an ask timeout to [10s, 600s], defaulting zero or
// negative values to 300s.
func ClampAskTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultAskTimeout
	}
	if d < minAskTimeout {
		return minAskTimeout
	}
	if d > maxAskTimeout {
		return maxAskTimeout
	}
	return d
}

// formatDuration renders a duration like "1h 1m", "5m 30s", or "45s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
