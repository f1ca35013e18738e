// ABOUTME: Tests for the chat transcript machine
// ABOUTME: Covers replies, fallbacks, the pending lock, blank input, history, and events

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/events"
)

// fakeAPI answers chat requests with canned replies.
type fakeAPI struct {
	mu       sync.Mutex
	requests []apiclient.ChatRequest
	reply    func(apiclient.ChatRequest) (apiclient.ChatResponse, error)
	// gate, when set, holds every request until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) SendChat(ctx context.Context, req apiclient.ChatRequest) (apiclient.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.reply(req)
}

func (f *fakeAPI) sent() []apiclient.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.ChatRequest(nil), f.requests...)
}

func replyWith(resp apiclient.ChatResponse, err error) func(apiclient.ChatRequest) (apiclient.ChatResponse, error) {
	return func(apiclient.ChatRequest) (apiclient.ChatResponse, error) { return resp, err }
}

func newSession(api API, cfg Config) *Session {
	var n int
	cfg.NewID = func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
	return New(api, cfg)
}

func TestSend_AppendsUserThenReply(t *testing.T) {
	api := &fakeAPI{reply: replyWith(apiclient.ChatResponse{Response: "hi"}, nil)}
	s := newSession(api, Config{SessionID: "s-1"})

	assert.True(t, s.Send(t.Context(), "hello"))

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, SenderUser, tr[0].Sender)
	assert.Equal(t, "hello", tr[0].Text)
	assert.Equal(t, SenderAssistant, tr[1].Sender)
	assert.Equal(t, "hi", tr[1].Text)
	assert.NotEqual(t, tr[0].ID, tr[1].ID)
	assert.False(t, s.Pending())

	reqs := api.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hello", reqs[0].Message)
	assert.Equal(t, "s-1", reqs[0].SessionID)
	assert.Empty(t, reqs[0].History)
}

func TestSend_ReplyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		resp apiclient.ChatResponse
		err  error
		want string
	}{
		{"response field", apiclient.ChatResponse{Response: "a", Message: "b"}, nil, "a"},
		{"message field", apiclient.ChatResponse{Message: "b"}, nil, "b"},
		{"empty body", apiclient.ChatResponse{}, nil, DefaultReply},
		{"server error", apiclient.ChatResponse{}, &apiclient.Error{Kind: apiclient.ErrServer, Status: 500}, FailureReply},
		{"transport error", apiclient.ChatResponse{}, &apiclient.Error{Kind: apiclient.ErrTransport, Err: errors.New("timeout")}, FailureReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(&fakeAPI{reply: replyWith(tt.resp, tt.err)}, Config{})
			require.True(t, s.Send(t.Context(), "question"))

			tr := s.Transcript()
			require.Len(t, tr, 2)
			assert.Equal(t, tt.want, tr[1].Text)
			assert.Equal(t, SenderAssistant, tr[1].Sender)
			assert.False(t, s.Pending())
		})
	}
}

func TestSend_BlankIsNoop(t *testing.T) {
	api := &fakeAPI{reply: replyWith(apiclient.ChatResponse{Response: "x"}, nil)}
	s := newSession(api, Config{})

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.False(t, s.Send(t.Context(), text))
	}
	assert.Empty(t, s.Transcript())
	assert.Empty(t, api.sent())
}

func TestSend_IgnoredWhilePending(t *testing.T) {
	api := &fakeAPI{
		reply:   replyWith(apiclient.ChatResponse{Response: "first reply"}, nil),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s := newSession(api, Config{})

	done := make(chan bool, 1)
	go func() { done <- s.Send(context.Background(), "first") }()

	select {
	case <-api.entered:
	case <-time.After(time.Second):
		t.Fatal("request never started")
	}
	assert.True(t, s.Pending())

	assert.False(t, s.Send(t.Context(), "second"))
	require.Len(t, s.Transcript(), 1)

	close(api.gate)
	assert.True(t, <-done)

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, "first", tr[0].Text)
	assert.Equal(t, "first reply", tr[1].Text)
	assert.Len(t, api.sent(), 1)
}

func TestSubmit_UsesAndClearsInput(t *testing.T) {
	api := &fakeAPI{reply: replyWith(apiclient.ChatResponse{Response: "ok"}, nil)}
	s := newSession(api, Config{})

	s.SetInput("  ")
	assert.False(t, s.Submit(t.Context()))
	assert.Equal(t, "  ", s.Input(), "a blank submit keeps the buffer")

	s.SetInput(ExampleQueries[0])
	assert.True(t, s.Submit(t.Context()))
	assert.Empty(t, s.Input())
	assert.Equal(t, ExampleQueries[0], api.sent()[0].Message)
}

func TestSend_History(t *testing.T) {
	api := &fakeAPI{reply: func(req apiclient.ChatRequest) (apiclient.ChatResponse, error) {
		return apiclient.ChatResponse{Response: "re: " + req.Message}, nil
	}}
	s := newSession(api, Config{SendHistory: true})

	require.True(t, s.Send(t.Context(), "one"))
	require.True(t, s.Send(t.Context(), "two"))

	reqs := api.sent()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].History)
	assert.Equal(t, []apiclient.Turn{
		{Role: apiclient.RoleUser, Content: "one"},
		{Role: apiclient.RoleAssistant, Content: "re: one"},
	}, reqs[1].History)
	assert.Equal(t, reqs[0].SessionID, reqs[1].SessionID)
	assert.Equal(t, s.ID(), reqs[0].SessionID)
}

func TestSend_TranscriptOrderAcrossFailures(t *testing.T) {
	var n int
	api := &fakeAPI{reply: func(req apiclient.ChatRequest) (apiclient.ChatResponse, error) {
		n++
		if n%2 == 0 {
			return apiclient.ChatResponse{}, errors.New("down")
		}
		return apiclient.ChatResponse{Response: "ok " + req.Message}, nil
	}}
	s := newSession(api, Config{})

	for _, q := range []string{"a", "b", "c"} {
		require.True(t, s.Send(t.Context(), q))
	}

	tr := s.Transcript()
	require.Len(t, tr, 6)
	want := []string{"a", "ok a", "b", FailureReply, "c", "ok c"}
	for i, m := range tr {
		assert.Equal(t, want[i], m.Text)
		if i%2 == 0 {
			assert.Equal(t, SenderUser, m.Sender)
		} else {
			assert.Equal(t, SenderAssistant, m.Sender)
		}
	}
}

func TestSend_PublishesEvents(t *testing.T) {
	b := events.New(nil)
	defer b.Close()
	ch, _ := b.Subscribe(t.Context(), events.TopicChat)

	s := newSession(&fakeAPI{reply: replyWith(apiclient.ChatResponse{Response: "hi"}, nil)}, Config{Events: b})
	require.True(t, s.Send(t.Context(), "hello"))

	var types []string
	for range 4 {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing chat event")
		}
	}
	assert.Equal(t, []string{"message", "pending", "message", "pending"}, types)
}
