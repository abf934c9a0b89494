package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iksnae/jarvis-console/internal"
)

// NewChatResponse is the body of POST /auth/new-chat
type NewChatResponse struct {
	ChatID    string             `json:"chat_id"`
	StartedAt internal.Timestamp `json:"started_at,omitempty"`
}

// CommandRequest is the body of POST /command. ChatID and Silent are left out
// of the payload when empty; a guest never sends chat_id.
type CommandRequest struct {
	Command string `json:"command"`
	ChatID  string `json:"chat_id,omitempty"`
	Silent  bool   `json:"silent,omitempty"`
}

// CommandResponse is the body of POST /command. Reply is kept untyped since
// the backend does not guarantee a string.
type CommandResponse struct {
	Reply      any     `json:"reply"`
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ChatMessageResponse is the body of POST /chat/message
type ChatMessageResponse struct {
	Reply  string `json:"reply"`
	ChatID string `json:"chat_id"`
}

// NewChat starts a conversation for the token's account. A response without
// a chat id is an error.
func (c *Client) NewChat(ctx context.Context, token string) (*NewChatResponse, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var out NewChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/new-chat", token, nil, &out); err != nil {
		return nil, err
	}
	if out.ChatID == "" {
		return nil, &internal.BackendError{Op: "POST /auth/new-chat", Status: http.StatusOK, Detail: "no chat_id in response"}
	}
	return &out, nil
}

// History lists the account's conversations. Guests get an empty list.
func (c *Client) History(ctx context.Context, token string) ([]internal.Conversation, error) {
	if token == "" {
		return nil, nil
	}
	var out []internal.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/auth/history", token, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeRoles(out[i].Messages)
	}
	return out, nil
}

// normalizeRoles maps the backend's "jarvis" author onto RoleAssistant
func normalizeRoles(msgs []internal.ChatMessage) {
	for i := range msgs {
		if msgs[i].Role != internal.RoleUser {
			msgs[i].Role = internal.RoleAssistant
		}
	}
}

// DeleteHistory removes one conversation
func (c *Client) DeleteHistory(ctx context.Context, token, chatID string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	op := "DELETE /auth/history/" + chatID
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/auth/history/"+url.PathEscape(chatID), token, nil, &out); err != nil {
		return err
	}
	if out.Status != "deleted" {
		return &internal.BackendError{Op: op, Status: http.StatusOK, Detail: "chat not deleted"}
	}
	return nil
}

// Command sends a console command. token may be empty for guests.
func (c *Client) Command(ctx context.Context, token string, req CommandRequest) (*CommandResponse, error) {
	var out CommandResponse
	if err := c.doJSON(ctx, http.MethodPost, "/command", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatMessage posts to the chat endpoint; an empty chatID starts a new chat
func (c *Client) ChatMessage(ctx context.Context, token, text, chatID string) (*ChatMessageResponse, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	in := map[string]string{"text": text}
	if chatID != "" {
		in["chat_id"] = chatID
	}
	var out ChatMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/message", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
