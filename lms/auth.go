package lms

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// DefaultLoginTimeout bounds the wait for a login success indicator.
const DefaultLoginTimeout = 10 * time.Second

// LoginOutcome is what a login driver observed after submitting credentials.
type LoginOutcome struct {
	// Success is true when a post-login indicator was seen.
	Success bool
	// URL is the page the driver ended on.
	URL string
	// Cookies holds every session cookie the driver could extract.
	Cookies map[string]string
}

// LoginDriver starts an interactive login surface, such as a headless browser
// or a programmatic form client.
type LoginDriver interface {
	// Start acquires the login resource. An error here is a setup failure,
	// not a credential failure.
	Start(ctx context.Context) (LoginHandle, error)
}

// LoginHandle is one acquired login resource. Stop must always be called.
type LoginHandle interface {
	// SubmitCredentials navigates to the login page and submits the form.
	SubmitCredentials(ctx context.Context, username, password string) error
	// WaitForOutcome waits up to timeout for a success indicator. Not seeing
	// one is reported as an unsuccessful outcome, not an error.
	WaitForOutcome(ctx context.Context, timeout time.Duration) (LoginOutcome, error)
	// Stop releases the resource.
	Stop() error
}

// Authenticator turns username/password pairs into sessions by driving a
// LoginDriver. It performs no retries.
type Authenticator struct {
	driver  LoginDriver
	timeout time.Duration
	logger  *slog.Logger
}

func NewAuthenticator(driver LoginDriver) *Authenticator {
	return &Authenticator{
		driver:  driver,
		timeout: DefaultLoginTimeout,
		logger:  slog.Default(),
	}
}

// WithOutcomeTimeout sets how long to wait for a login success indicator.
func (a *Authenticator) WithOutcomeTimeout(timeout time.Duration) *Authenticator {
	a.timeout = timeout
	return a
}

func (a *Authenticator) WithLogger(logger *slog.Logger) *Authenticator {
	a.logger = logger
	return a
}

// Authenticate logs in with the given credentials. On failure the returned
// session is unauthenticated and the error has KindAuthenticationFailed, or
// KindAutomationSetupFailed when the driver could not be started. The driver
// resource is released before Authenticate returns, including on panic.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (sess Session, err error) {
	if username == "" || password == "" {
		return Session{}, authFailed("username and password are required", nil)
	}
	logger := a.logger.With("username", username)
	logger.Info("starting LMS authentication")

	handle, err := a.driver.Start(ctx)
	if err != nil {
		logger.Error("login driver setup failed", "error", err)
		return Session{}, &Error{Kind: KindAutomationSetupFailed, Op: "authenticate", Message: "could not start login driver", Err: err}
	}
	defer func() {
		if stopErr := handle.Stop(); stopErr != nil {
			logger.Warn("login driver did not stop cleanly", "error", stopErr)
		}
	}()

	if err := handle.SubmitCredentials(ctx, username, password); err != nil {
		logger.Error("LMS authentication failed", "stage", "submit", "error", err)
		return Session{}, authFailed("could not submit credentials", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	outcome, err := handle.WaitForOutcome(waitCtx, a.timeout)
	if err != nil {
		logger.Error("LMS authentication failed", "stage", "wait", "error", err)
		return Session{}, authFailed("login did not complete", err)
	}
	if !outcome.Success {
		logger.Warn("LMS authentication failed", "stage", "wait", "url", outcome.URL)
		return Session{}, authFailed(fmt.Sprintf("no login success indicator within %s", a.timeout), nil)
	}

	logger.Info("LMS authentication successful", "cookies", len(outcome.Cookies))
	return Session{
		Authenticated: true,
		Identity:      username,
		Cookies:       maps.Clone(outcome.Cookies),
	}, nil
}
