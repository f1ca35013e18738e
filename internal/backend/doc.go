// ABOUTME: Package backend is a local stand-in for the catalog REST service
// ABOUTME: SQLite persistence, cookie sessions, chat history, keyword assistant and index

// Package backend serves the REST contract the admin console and chat REPL
// talk to. It exists for development and integration tests: the production
// service is a separate system.
//
// The server exposes:
//
//   - /admin/login, /admin/logout, /admin/check with an admin_session cookie
//   - /{kind}/ list, /{kind}/{id} get, create, partial update and delete
//   - /{kind}/search/ keyword and price filtering
//   - /chat/ and /chat/history/{session_id}
//   - /embeddings/reindex and /embeddings/status
//
// Reads are public. Mutations and reindexing require an admin session.
package backend
