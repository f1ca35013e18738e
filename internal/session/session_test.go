// ABOUTME: Tests for the session status machine
// ABOUTME: Covers check, login, logout transitions, logout policy, gating, and events

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/events"
)

// fakeAuth implements AuthAPI with canned errors.
type fakeAuth struct {
	checkErr  error
	loginErr  error
	logoutErr error
	passwords []string
}

func (f *fakeAuth) CheckAuth(ctx context.Context) error { return f.checkErr }

func (f *fakeAuth) Login(ctx context.Context, password string) error {
	f.passwords = append(f.passwords, password)
	return f.loginErr
}

func (f *fakeAuth) Logout(ctx context.Context) error { return f.logoutErr }

var errUnauthorized = &apiclient.Error{Kind: apiclient.ErrAuth, Status: 401, Method: "GET", Path: "/admin/check"}

func TestMachine_StartsLoading(t *testing.T) {
	m := New(&fakeAuth{}, Config{})
	assert.Equal(t, StatusLoading, m.Status())
	assert.ErrorIs(t, m.Require(), ErrLoading)
}

func TestCheckAuth(t *testing.T) {
	m := New(&fakeAuth{}, Config{})
	assert.Equal(t, StatusAuthenticated, m.CheckAuth(t.Context()))
	assert.NoError(t, m.Require())

	m = New(&fakeAuth{checkErr: errUnauthorized}, Config{})
	assert.Equal(t, StatusAnonymous, m.CheckAuth(t.Context()))
	assert.ErrorIs(t, m.Require(), ErrAnonymous)

	// Transport failures also resolve the loading state.
	m = New(&fakeAuth{checkErr: &apiclient.Error{Kind: apiclient.ErrTransport}}, Config{})
	assert.Equal(t, StatusAnonymous, m.CheckAuth(t.Context()))
}

func TestLogin(t *testing.T) {
	api := &fakeAuth{checkErr: errUnauthorized}
	m := New(api, Config{})
	m.CheckAuth(t.Context())

	assert.True(t, m.Login(t.Context(), "letmein"))
	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Equal(t, []string{"letmein"}, api.passwords)
}

func TestLogin_FailureKeepsStatus(t *testing.T) {
	for _, loginErr := range []error{
		&apiclient.Error{Kind: apiclient.ErrAuth, Status: 401, Detail: "Invalid password"},
		&apiclient.Error{Kind: apiclient.ErrTransport, Err: errors.New("connection refused")},
	} {
		m := New(&fakeAuth{checkErr: errUnauthorized, loginErr: loginErr}, Config{})
		m.CheckAuth(t.Context())

		assert.False(t, m.Login(t.Context(), "nope"))
		assert.Equal(t, StatusAnonymous, m.Status())
	}

	// A failed login while still loading stays loading.
	m := New(&fakeAuth{loginErr: errUnauthorized}, Config{})
	assert.False(t, m.Login(t.Context(), "nope"))
	assert.Equal(t, StatusLoading, m.Status())
}

func TestLogout(t *testing.T) {
	m := New(&fakeAuth{}, Config{})
	m.CheckAuth(t.Context())

	require.NoError(t, m.Logout(t.Context()))
	assert.Equal(t, StatusAnonymous, m.Status())
}

func TestLogout_FailureKeepsSession(t *testing.T) {
	serverErr := &apiclient.Error{Kind: apiclient.ErrServer, Status: 500}
	m := New(&fakeAuth{logoutErr: serverErr}, Config{})
	m.CheckAuth(t.Context())

	err := m.Logout(t.Context())
	assert.ErrorIs(t, err, apiclient.ErrServer)
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestLogout_ForceLocal(t *testing.T) {
	serverErr := &apiclient.Error{Kind: apiclient.ErrServer, Status: 500}
	m := New(&fakeAuth{logoutErr: serverErr}, Config{LogoutPolicy: LogoutForceLocal})
	m.CheckAuth(t.Context())

	assert.Error(t, m.Logout(t.Context()))
	assert.Equal(t, StatusAnonymous, m.Status())
}

func TestMachine_PublishesEvents(t *testing.T) {
	b := events.New(nil)
	defer b.Close()
	ch, _ := b.Subscribe(t.Context(), events.TopicSession)

	m := New(&fakeAuth{}, Config{Events: b})
	m.CheckAuth(t.Context())

	select {
	case ev := <-ch:
		assert.Equal(t, "check", ev.Type)
		assert.Equal(t, StatusAuthenticated, ev.Data)
	case <-time.After(time.Second):
		t.Fatal("no session event")
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "anonymous", StatusAnonymous.String())
}
