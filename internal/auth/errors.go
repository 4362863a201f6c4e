package auth

import (
	"errors"
	"fmt"
)

// InvalidRedirectError indicates a malformed redirect URL or one missing the
// session_token_code artifact. It is not retriable; the caller must restart
// the interactive login.
type InvalidRedirectError struct {
	// Reason describes what was wrong with the redirect URL.
	Reason string
}

// Error returns a string representation of the invalid redirect error.
func (e *InvalidRedirectError) Error() string {
	return fmt.Sprintf("invalid redirect URL: %s", e.Reason)
}

// StateMismatchError indicates the state parameter returned by the redirect
// does not match the one the login URL was built with. It is treated as a
// potential CSRF attack or a stale login URL and is not retriable.
type StateMismatchError struct {
	Expected string
	Got      string
}

// Error returns a string representation of the state mismatch error.
func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("state mismatch: login URL was built with %q, redirect carried %q", e.Expected, e.Got)
}

// TokenExchangeError indicates a vendor endpoint rejected a token exchange.
// It is not retriable with the same inputs; the caller restarts login.
type TokenExchangeError struct {
	// StatusCode is the HTTP status returned by the endpoint.
	StatusCode int
	// Code is the OAuth error code from the response body, if present.
	Code string
	// Description is the OAuth error description, if present.
	Description string
}

// Error returns a string representation of the token exchange error.
func (e *TokenExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token exchange failed with status %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
}

// ReauthenticationError indicates the session token has been rejected
// server-side, or that a request kept failing authorization after a token
// refresh. It is terminal: the caller must obtain a new session token via
// interactive login.
type ReauthenticationError struct {
	// Code is the OAuth error code from the response body, if present.
	Code string
	// Message describes the failure.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a string representation of the reauthentication error.
func (e *ReauthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reauthentication failed: %s (caused by: %v)", e.Message, e.Cause)
	}
	if e.Code != "" {
		return fmt.Sprintf("reauthentication failed: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("reauthentication failed: %s", e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *ReauthenticationError) Unwrap() error { return e.Cause }

// TransportError wraps a network-level failure or a transient (5xx) vendor
// response. Unlike the other error types it is safe for the caller to retry
// with backoff.
type TransportError struct {
	// Op names the operation that failed, e.g. "session token exchange".
	Op string
	// StatusCode is set when the failure was an HTTP-level transient status.
	StatusCode int
	// Err is the underlying transport error, if any.
	Err error
}

// Error returns a string representation of the transport error.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transient server error with status %d", e.Op, e.StatusCode)
}

// Unwrap exposes the underlying transport error.
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err represents a transient transport failure
// that the caller may retry with backoff.
func IsTransient(err error) bool {
	var transportError *TransportError
	return errors.As(err, &transportError)
}

// IsReauthenticationError reports whether err is terminal for the current
// session token.
func IsReauthenticationError(err error) bool {
	var reauthenticationError *ReauthenticationError
	return errors.As(err, &reauthenticationError)
}
