// Package chat holds the transcript of a conversation with the catalog
// assistant.
//
// A Session appends each user message, sends it, and appends exactly one
// assistant reply: the server's answer, or a canned apology when the call
// fails. While a reply is pending further sends are ignored, so a user
// message is always followed by its own reply. The transcript only grows.
package chat
