// ABOUTME: Chat transcript machine with a pending lock and canned failure reply
// ABOUTME: Sends one message at a time and appends exactly one reply per message

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/events"
)

// Replies used when the server gives nothing usable.
const (
	DefaultReply = "I received your message."
	FailureReply = "Sorry, I encountered an error. Please try again."
)

// ExampleQueries are suggested first questions.
var ExampleQueries = []string{
	"What drinkware products do you have?",
	"Show me coffee outlets near me",
	"What's the price range for tumblers?",
	"Are there any outlets in the city center?",
}

// Sender is the author of a message.
type Sender string

// Senders
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time
}

// API is the backend surface the session needs.
type API interface {
	SendChat(ctx context.Context, req apiclient.ChatRequest) (apiclient.ChatResponse, error)
}

// Config holds optional settings. Now and NewID exist for tests.
type Config struct {
	SessionID   string // defaults to a fresh uuid
	SendHistory bool   // include prior turns in each request
	Events      *events.Broadcaster
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

// Session is a chat transcript. It is safe for concurrent use.
type Session struct {
	api         API
	sessionID   string
	sendHistory bool
	events      *events.Broadcaster
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	mu         sync.Mutex
	transcript []Message
	pending    bool
	input      string
}

// New creates an empty session.
func New(api API, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return &Session{
		api:         api,
		sessionID:   sessionID,
		sendHistory: cfg.SendHistory,
		events:      cfg.Events,
		logger:      logger.With("component", "chat", "session_id", sessionID),
		now:         now,
		newID:       newID,
	}
}

// ID returns the chat session id sent to the backend.
func (s *Session) ID() string { return s.sessionID }

// SetInput replaces the input buffer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Input returns the input buffer.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Submit sends the input buffer. See Send.
func (s *Session) Submit(ctx context.Context) bool {
	return s.Send(ctx, s.Input())
}

// Pending reports whether a reply is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Transcript returns a copy of the messages in order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.transcript...)
}

// Send appends text as a user message and blocks until its reply has been
// appended. It returns false without doing anything when text is blank or a
// reply is already pending.
func (s *Session) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return false
	}
	var history []apiclient.Turn
	if s.sendHistory {
		history = make([]apiclient.Turn, 0, len(s.transcript))
		for _, m := range s.transcript {
			history = append(history, apiclient.Turn{Role: apiclient.Role(m.Sender), Content: m.Text})
		}
	}
	user := s.messageLocked(SenderUser, text)
	s.input = ""
	s.pending = true
	s.mu.Unlock()

	s.publish("message", user)
	s.publish("pending", true)

	resp, err := s.api.SendChat(ctx, apiclient.ChatRequest{
		Message:   text,
		SessionID: s.sessionID,
		History:   history,
	})

	var reply string
	switch {
	case err != nil:
		s.logger.Error("chat request failed", "error", err)
		reply = FailureReply
	case resp.Response != "":
		reply = resp.Response
	case resp.Message != "":
		reply = resp.Message
	default:
		reply = DefaultReply
	}

	s.mu.Lock()
	assistant := s.messageLocked(SenderAssistant, reply)
	s.pending = false
	s.mu.Unlock()

	s.publish("message", assistant)
	s.publish("pending", false)
	return true
}

func (s *Session) messageLocked(sender Sender, text string) Message {
	m := Message{
		ID:        s.newID(),
		Text:      text,
		Sender:    sender,
		Timestamp: s.now(),
	}
	s.transcript = append(s.transcript, m)
	return m
}

func (s *Session) publish(typ string, data any) {
	s.events.Publish(events.Event{Topic: events.TopicChat, Type: typ, Data: data})
}
