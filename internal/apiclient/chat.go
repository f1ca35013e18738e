// ABOUTME: Chat assistant endpoints: send a message, read and clear session history
// ABOUTME: Replies may arrive under "response" or the older "message" key

package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// Role is the author of a history turn.
type Role string

// Roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	History   []Turn `json:"history,omitempty"`
}

// ChatResponse is the body of a chat reply.
type ChatResponse struct {
	Response  string `json:"response"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id"`
}

// SendChat posts one user message to the assistant.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat/", nil, req, &resp)
	return resp, err
}

// ChatHistory returns the server-side history of a chat session.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	var turns []Turn
	if err := c.do(ctx, http.MethodGet, "/chat/history/"+url.PathEscape(sessionID), nil, nil, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// ClearChatHistory deletes the server-side history of a chat session.
func (c *Client) ClearChatHistory(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/history/"+url.PathEscape(sessionID), nil, nil, nil)
}
