// ABOUTME: Admin session endpoints: check, login, logout
// ABOUTME: The session cookie is kept in the client's jar

package apiclient

import (
	"context"
	"net/http"
)

// AuthStatus is the body of GET /admin/check.
type AuthStatus struct {
	Authenticated bool `json:"authenticated"`
}

// AuthResult is the body of login and logout responses.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckAuth succeeds when the current cookie is an active admin session.
func (c *Client) CheckAuth(ctx context.Context) error {
	var status AuthStatus
	if err := c.do(ctx, http.MethodGet, "/admin/check", nil, nil, &status); err != nil {
		return err
	}
	if !status.Authenticated {
		return &Error{Kind: ErrAuth, Status: http.StatusOK, Method: http.MethodGet, Path: "/admin/check", Detail: "Not authenticated"}
	}
	return nil
}

// Login exchanges the admin password for a session cookie.
func (c *Client) Login(ctx context.Context, password string) error {
	body := struct {
		Password string `json:"password"`
	}{Password: password}
	var res AuthResult
	return c.do(ctx, http.MethodPost, "/admin/login", nil, body, &res)
}

// Logout ends the admin session.
func (c *Client) Logout(ctx context.Context) error {
	var res AuthResult
	return c.do(ctx, http.MethodPost, "/admin/logout", nil, nil, &res)
}
