// Package auth provides the public authentication API for the
// parental-controls client. It re-exports the internal Nintendo account
// OAuth/PKCE implementation so external projects can drive the login flow
// without importing internal packages.
package auth

import (
	"net/http"

	internalauth "github.com/moonctl/nintendoparental/internal/auth"
)

// Authenticator drives the login flow and owns the shared session state.
type Authenticator = internalauth.Authenticator

// Session aggregates the session token, access credential and user identity.
type Session = internalauth.Session

// SessionSnapshot is a consistent point-in-time view of a Session.
type SessionSnapshot = internalauth.SessionSnapshot

// AccessCredential holds the short-lived bearer credentials.
type AccessCredential = internalauth.AccessCredential

// UserIdentity holds the authenticated user's profile.
type UserIdentity = internalauth.UserIdentity

// PKCECodes holds the PKCE verifier, challenge and state for one login attempt.
type PKCECodes = internalauth.PKCECodes

// Error types surfaced by the flow.
type (
	InvalidRedirectError  = internalauth.InvalidRedirectError
	StateMismatchError    = internalauth.StateMismatchError
	TokenExchangeError    = internalauth.TokenExchangeError
	ReauthenticationError = internalauth.ReauthenticationError
	TransportError        = internalauth.TransportError
)

// Endpoints groups the vendor endpoint URLs, overridable for tests and mock
// servers.
type Endpoints = internalauth.Endpoints

// Option configures an Authenticator at construction time.
type Option = internalauth.Option

// WithEndpoints overrides the vendor endpoint URLs.
func WithEndpoints(endpoints Endpoints) Option { return internalauth.WithEndpoints(endpoints) }

// NewLogin creates an Authenticator prepared for an interactive login.
func NewLogin(httpClient *http.Client, opts ...Option) (*Authenticator, error) {
	return internalauth.NewLogin(httpClient, opts...)
}

// NewWithSessionToken creates an Authenticator seeded with a stored session token.
func NewWithSessionToken(httpClient *http.Client, sessionToken string, opts ...Option) *Authenticator {
	return internalauth.NewWithSessionToken(httpClient, sessionToken, opts...)
}

// IsTransient reports whether err is a transient transport failure safe to
// retry with backoff.
func IsTransient(err error) bool { return internalauth.IsTransient(err) }

// IsReauthenticationError reports whether err is terminal for the current
// session token.
func IsReauthenticationError(err error) bool { return internalauth.IsReauthenticationError(err) }
