// Package telegram bridges workflow events to a Telegram chat: one-way
// notifications, blocking questions with inline-keyboard replies, and a
// long-polling loop that resolves those replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is a non-200 response from the Bot API.
type APIError struct {
	Description string
	Code        int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client for one chat.
func NewClient(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		baseURL: defaultAPIBase,
		http:    &http.Client{Timeout: 65 * time.Second},
	}
}

// Update is one entry from getUpdates.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64    `json:"message_id"`
	Text      string   `json:"text"`
	ReplyTo   *Message `json:"reply_to_message"`
}

// CallbackQuery is an inline-button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// SendMessage sends plain text and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, text, parseMode string) (int64, error) {
	payload := map[string]any{"chat_id": c.chatID, "text": text}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return c.sendMessagePayload(ctx, payload)
}

// SendMessageWithButtons sends text with a one-column inline keyboard. The
// button label doubles as the callback data.
func (c *Client) SendMessageWithButtons(ctx context.Context, text string, buttons []string) (int64, error) {
	keyboard := make([][]map[string]string, len(buttons))
	for i, b := range buttons {
		keyboard[i] = []map[string]string{{"text": b, "callback_data": b}}
	}
	payload := map[string]any{
		"chat_id":      c.chatID,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": keyboard},
	}
	return c.sendMessagePayload(ctx, payload)
}

func (c *Client) sendMessagePayload(ctx context.Context, payload map[string]any) (int64, error) {
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// GetUpdates long-polls for new updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// AnswerCallback acknowledges a pressed inline button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		ErrorCode   int             `json:"error_code"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Description: envelope.Description, Code: envelope.ErrorCode}
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
