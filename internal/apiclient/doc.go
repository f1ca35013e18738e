// Package apiclient is the HTTP client for the catalog backend's REST API.
//
// # Overview
//
// One Client serves every surface of the backend:
//
//   - resources: List, Get, Create, Update, Delete and Search per catalog kind
//   - admin auth: CheckAuth, Login, Logout against /admin/*
//   - chat: SendChat, ChatHistory, ClearChatHistory against /chat/*
//   - embeddings: Reindex and IndexStatus against /embeddings/*
//
// The client keeps a cookie jar, so the admin_session cookie set by Login
// travels with every later request. Requests time out after the configured
// timeout (10s by default) and are never retried.
//
// # Errors
//
// Every failure is an *Error. Match its class with errors.Is:
//
//	if errors.Is(err, apiclient.ErrAuth) {
//	    // back to the login prompt
//	}
//
// Non-2xx responses carry the server's "detail" message. The 401 answers of
// /admin/check and /admin/login are expected and are not logged; every other
// failure is logged with method, path, status and body.
//
// # Pagination
//
// List accepts both a bare JSON array and the paginated envelope
// {items, total, page, per_page, total_pages}. Envelopes are followed until
// the last page, so callers always get the full collection in server order.
package apiclient
