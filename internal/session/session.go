// ABOUTME: Admin session status machine: Loading, Authenticated, Anonymous
// ABOUTME: Wraps check/login/logout calls and publishes every status change

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/brewdesk/internal/events"
)

// Status is the session state.
type Status int

// Status constants
const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Gate errors returned by Require.
var (
	ErrLoading   = errors.New("session status not yet known")
	ErrAnonymous = errors.New("not logged in")
)

// LogoutPolicy decides the status after a failed logout call.
type LogoutPolicy int

const (
	// LogoutKeepOnFailure leaves the status unchanged when logout fails.
	LogoutKeepOnFailure LogoutPolicy = iota
	// LogoutForceLocal drops to Anonymous even when logout fails.
	LogoutForceLocal
)

// AuthAPI is the backend surface the machine needs.
type AuthAPI interface {
	CheckAuth(ctx context.Context) error
	Login(ctx context.Context, password string) error
	Logout(ctx context.Context) error
}

// Config holds optional collaborators.
type Config struct {
	LogoutPolicy LogoutPolicy
	Events       *events.Broadcaster
	Logger       *slog.Logger
}

// Machine is the session status machine. It is safe for concurrent use.
type Machine struct {
	api    AuthAPI
	policy LogoutPolicy
	events *events.Broadcaster
	logger *slog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a machine in StatusLoading.
func New(api AuthAPI, cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		api:    api,
		policy: cfg.LogoutPolicy,
		events: cfg.Events,
		logger: logger.With("component", "session"),
		status: StatusLoading,
	}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Require returns nil only when a session is active.
func (m *Machine) Require() error {
	switch m.Status() {
	case StatusAuthenticated:
		return nil
	case StatusLoading:
		return ErrLoading
	default:
		return ErrAnonymous
	}
}

// CheckAuth asks the backend whether the current cookie is a live session.
// Any failure, including transport errors, counts as anonymous.
func (m *Machine) CheckAuth(ctx context.Context) Status {
	if err := m.api.CheckAuth(ctx); err != nil {
		m.logger.Debug("auth check failed", "error", err)
		m.set(StatusAnonymous, "check")
		return StatusAnonymous
	}
	m.set(StatusAuthenticated, "check")
	return StatusAuthenticated
}

// Login submits the admin password. It reports success; a wrong password and
// an unreachable backend both return false and leave the status unchanged.
func (m *Machine) Login(ctx context.Context, password string) bool {
	if err := m.api.Login(ctx, password); err != nil {
		m.logger.Debug("login failed", "error", err)
		return false
	}
	m.set(StatusAuthenticated, "login")
	return true
}

// Logout ends the session. On failure the error is logged and returned and
// the status follows the configured LogoutPolicy.
func (m *Machine) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.Error("logout failed", "error", err)
		if m.policy == LogoutForceLocal {
			m.set(StatusAnonymous, "logout")
		}
		return err
	}
	m.set(StatusAnonymous, "logout")
	return nil
}

func (m *Machine) set(s Status, cause string) {
	m.mu.Lock()
	prev := m.status
	m.status = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Info("session status changed", "from", prev, "to", s, "cause", cause)
	}
	m.events.Publish(events.Event{Topic: events.TopicSession, Type: cause, Data: s})
}
