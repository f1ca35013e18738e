// ABOUTME: Scripted chat REPL sessions against a fake assistant backend
// ABOUTME: Checks reply rendering, failure replies and the history commands

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/chat"
	"github.com/2389/brewdesk/internal/events"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeAssistant struct {
	mu      sync.Mutex
	fail    bool
	asked   []apiclient.ChatRequest
	stored  map[string][]apiclient.Turn
	cleared []string
}

func newFakeAssistant() *fakeAssistant {
	return &fakeAssistant{stored: map[string][]apiclient.Turn{}}
}

func (f *fakeAssistant) SendChat(ctx context.Context, req apiclient.ChatRequest) (apiclient.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, req)
	if f.fail {
		return apiclient.ChatResponse{}, errors.New("connection refused")
	}
	reply := "Here's what I found:\n\n- **Drink:** Latte, Category: Coffee"
	f.stored[req.SessionID] = append(f.stored[req.SessionID],
		apiclient.Turn{Role: apiclient.RoleUser, Content: req.Message},
		apiclient.Turn{Role: apiclient.RoleAssistant, Content: reply},
	)
	return apiclient.ChatResponse{Response: reply, SessionID: req.SessionID}, nil
}

func (f *fakeAssistant) ChatHistory(ctx context.Context, sessionID string) ([]apiclient.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.Turn(nil), f.stored[sessionID]...), nil
}

func (f *fakeAssistant) ClearChatHistory(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, sessionID)
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func runChat(t *testing.T, api *fakeAssistant, script ...string) (string, *chat.Session) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.New(logger)
	t.Cleanup(bus.Close)

	sess := chat.New(api, chat.Config{SessionID: "kiosk-1", Events: bus, Logger: logger})
	var out bytes.Buffer
	r := newChatREPL(sess, api, bus, strings.NewReader(strings.Join(script, "\n")+"\n"), &out)
	require.NoError(t, r.run(context.Background()))
	return out.String(), sess
}

func TestChatREPL_RendersReply(t *testing.T) {
	api := newFakeAssistant()
	out, sess := runChat(t, api, "any lattes?", "/quit")

	assert.Contains(t, out, "thinking...")
	assert.Contains(t, out, "assistant>")
	assert.Contains(t, out, "Here's what I found:")
	assert.Contains(t, out, "Drink:")
	assert.NotContains(t, out, "**Drink:**")

	require.Len(t, api.asked, 1)
	assert.Equal(t, "kiosk-1", api.asked[0].SessionID)
	assert.Len(t, sess.Transcript(), 2)
}

func TestChatREPL_FailureReply(t *testing.T) {
	api := newFakeAssistant()
	api.fail = true
	out, _ := runChat(t, api, "hello?")

	assert.Contains(t, out, chat.FailureReply)
}

func TestChatREPL_ExampleQuestion(t *testing.T) {
	api := newFakeAssistant()
	out, _ := runChat(t, api, "/example 2", "/example 9")

	require.Len(t, api.asked, 1)
	assert.Equal(t, chat.ExampleQueries[1], api.asked[0].Message)
	assert.Contains(t, out, "pick an example between 1 and 4")
}

func TestChatREPL_HistoryAndForget(t *testing.T) {
	api := newFakeAssistant()
	out, sess := runChat(t, api, "/history", "latte", "/history", "/forget", "/transcript", "/bogus")

	assert.Contains(t, out, "No stored history for this session.")
	assert.Contains(t, out, "user: latte")
	assert.Contains(t, out, "Server history cleared for session kiosk-1.")
	assert.Contains(t, out, "unknown command /bogus")
	assert.Equal(t, []string{"kiosk-1"}, api.cleared)

	// Forgetting server history leaves the local transcript intact.
	assert.Len(t, sess.Transcript(), 2)
	assert.Contains(t, out, "assistant: Here's what I found:")
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb", "  "))
}
