package lms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver simulates a login page that accepts one password.
type fakeDriver struct {
	password    string
	startErr    error
	submitErr   error
	panicOnWait bool

	started int
	stopped int
	handle  *fakeHandle
}

func (d *fakeDriver) Start(ctx context.Context) (LoginHandle, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.started++
	d.handle = &fakeHandle{driver: d}
	return d.handle, nil
}

type fakeHandle struct {
	driver   *fakeDriver
	accepted bool
	timeout  time.Duration
}

func (h *fakeHandle) SubmitCredentials(ctx context.Context, username, password string) error {
	if h.driver.submitErr != nil {
		return h.driver.submitErr
	}
	h.accepted = password == h.driver.password
	return nil
}

func (h *fakeHandle) WaitForOutcome(ctx context.Context, timeout time.Duration) (LoginOutcome, error) {
	h.timeout = timeout
	if h.driver.panicOnWait {
		panic("browser crashed")
	}
	if !h.accepted {
		// A rejected login never shows the dashboard; wait out the bound.
		<-ctx.Done()
		return LoginOutcome{URL: "https://learn.example.edu/login/canvas"}, nil
	}
	return LoginOutcome{
		Success: true,
		URL:     "https://learn.example.edu/dashboard",
		Cookies: map[string]string{"canvas_session": "abc123", "_csrf_token": "tok"},
	}, nil
}

func (h *fakeHandle) Stop() error {
	h.driver.stopped++
	return nil
}

func newTestAuthenticator(d LoginDriver) *Authenticator {
	return NewAuthenticator(d).
		WithOutcomeTimeout(50 * time.Millisecond).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthenticateSuccess(t *testing.T) {
	driver := &fakeDriver{password: "correctpw"}

	sess, err := newTestAuthenticator(driver).Authenticate(context.Background(), "student@example.com", "correctpw")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, "student@example.com", sess.Identity)
	assert.Equal(t, "abc123", sess.Cookies["canvas_session"])
	assert.Equal(t, 1, driver.stopped)
	assert.Equal(t, 50*time.Millisecond, driver.handle.timeout)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	driver := &fakeDriver{password: "correctpw"}

	sess, err := newTestAuthenticator(driver).Authenticate(context.Background(), "student@example.com", "wrongpw")
	require.Error(t, err)
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	assert.False(t, sess.Authenticated)
	assert.Empty(t, sess.Cookies)
	assert.Equal(t, 1, driver.stopped)
}

func TestAuthenticateRejectsEmptyCredentials(t *testing.T) {
	driver := &fakeDriver{password: "correctpw"}
	auth := newTestAuthenticator(driver)

	_, err := auth.Authenticate(context.Background(), "", "correctpw")
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	_, err = auth.Authenticate(context.Background(), "student@example.com", "")
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	assert.Zero(t, driver.started)
}

func TestAuthenticateSetupFailure(t *testing.T) {
	driver := &fakeDriver{startErr: errors.New("chromium executable not found")}

	sess, err := newTestAuthenticator(driver).Authenticate(context.Background(), "student@example.com", "correctpw")
	assert.Equal(t, KindAutomationSetupFailed, KindOf(err))
	assert.Contains(t, err.Error(), "chromium executable not found")
	assert.False(t, sess.Authenticated)
}

func TestAuthenticateSubmitFailure(t *testing.T) {
	driver := &fakeDriver{password: "correctpw", submitErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	_, err := newTestAuthenticator(driver).Authenticate(context.Background(), "student@example.com", "correctpw")
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	assert.Equal(t, 1, driver.stopped)
}

func TestAuthenticateReleasesDriverOnPanic(t *testing.T) {
	driver := &fakeDriver{password: "correctpw", panicOnWait: true}

	assert.Panics(t, func() {
		newTestAuthenticator(driver).Authenticate(context.Background(), "student@example.com", "correctpw")
	})
	assert.Equal(t, 1, driver.stopped)
}

func TestSessionCredentialsAreHidden(t *testing.T) {
	sess := Session{Authenticated: true, Identity: "student@example.com", Cookies: map[string]string{"canvas_session": "abc123"}, AccessToken: "s3cret"}
	fp := sess.fingerprint()

	other := sess
	other.Cookies = map[string]string{"canvas_session": "zzz"}
	assert.NotEqual(t, fp, other.fingerprint())
	assert.Equal(t, fp, sess.fingerprint())
	assert.NotContains(t, fp, "abc123")
}
