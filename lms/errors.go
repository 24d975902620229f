package lms

import (
	"errors"
	"fmt"
)

// Kind classifies every error the client returns so that callers (and the
// tool boundary) can branch on a stable value instead of inspecting messages.
type Kind string

const (
	// KindUnauthenticated means a fetch was attempted with a session that is
	// not authenticated. No network I/O was performed.
	KindUnauthenticated Kind = "unauthenticated"
	// KindAuthenticationFailed means the credentials were rejected or no
	// success indicator appeared within the login timeout.
	KindAuthenticationFailed Kind = "authentication_failed"
	// KindAutomationSetupFailed means the login driver could not be started,
	// e.g. the browser binary is missing.
	KindAutomationSetupFailed Kind = "automation_setup_failed"
	// KindUpstreamUnavailable means the structured API path failed. It is
	// normally recovered by the page fallback.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindFallbackExhausted means both the API path and the page fallback failed.
	KindFallbackExhausted Kind = "fallback_exhausted"
	// KindMalformed means a response could not be parsed at all.
	KindMalformed Kind = "malformed"
)

// Error is the tagged error returned by every operation in this package.
type Error struct {
	Kind    Kind
	Op      string // operation, e.g. "modules"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPError represents a non-2xx response from the LMS.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 403, 404, 429)
	Status     string // Full status text (e.g., "403 Forbidden")
	Message    string // Message extracted from the response body, if any
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

func unauthenticated(op string) error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: "not authenticated, authenticate first"}
}

func authFailed(message string, err error) error {
	return &Error{Kind: KindAuthenticationFailed, Op: "authenticate", Message: message, Err: err}
}

func upstreamUnavailable(op string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Message: "structured endpoint unavailable", Err: err}
}

func malformed(op string, err error) error {
	return &Error{Kind: KindMalformed, Op: op, Message: "could not parse response", Err: err}
}
