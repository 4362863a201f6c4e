package auth

import (
	"sync"
	"time"
)

// AccessCredential holds the short-lived bearer credentials minted by a token
// exchange. Credentials are replaced wholesale on refresh, never patched.
type AccessCredential struct {
	// AccessToken is the bearer token presented on each API call.
	AccessToken string `json:"access_token"`
	// IDToken is the identity assertion returned alongside the access token.
	IDToken string `json:"id_token"`
	// ExpiresAt is the absolute expiry derived from issuance time plus the
	// server-declared lifetime.
	ExpiresAt time.Time `json:"expires_at"`
	// Scopes lists the scopes granted with this credential.
	Scopes []string `json:"scopes,omitempty"`
}

// ExpiresWithin reports whether the credential has expired or will expire
// within the given lead duration.
func (c *AccessCredential) ExpiresWithin(lead time.Duration) bool {
	if c == nil {
		return true
	}
	return !time.Now().Add(lead).Before(c.ExpiresAt)
}

// UserIdentity holds the authenticated user's profile, fetched once per
// successful exchange and read-only afterwards.
type UserIdentity struct {
	// UserID is the Nintendo account id, used as the parental-controls
	// account id on Moon API paths.
	UserID string `json:"id"`
	// Nickname is the account display name.
	Nickname string `json:"nickname"`
	// Country is the account country code.
	Country string `json:"country"`
	// Language is the account language tag.
	Language string `json:"language"`
}

// SessionSnapshot is a consistent point-in-time view of a Session. All fields
// were observed under the same lock acquisition, so the generation counter
// can be compared across snapshots to detect refreshes.
type SessionSnapshot struct {
	SessionToken string
	Credential   *AccessCredential
	Identity     *UserIdentity
	Generation   uint64
}

// Session aggregates the long-lived session token, the current bearer
// credential and the user identity. It is the only mutable shared state of an
// Authenticator and is mutated exclusively by the token exchange path, which
// replaces all fields together under the lock and bumps the generation
// counter by one.
type Session struct {
	mu           sync.RWMutex
	sessionToken string
	credential   *AccessCredential
	identity     *UserIdentity
	generation   uint64
}

// NewSession creates a Session seeded with an optional stored session token.
func NewSession(sessionToken string) *Session {
	return &Session{sessionToken: sessionToken}
}

// SessionToken returns the current session token. The caller owns its
// persistence across restarts; the library never writes it to disk.
func (s *Session) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionToken
}

// SetSessionToken replaces the stored session token. Intended for callers
// restoring a persisted token before completing login.
func (s *Session) SetSessionToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionToken = token
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSnapshot{
		SessionToken: s.sessionToken,
		Credential:   s.credential,
		Identity:     s.identity,
		Generation:   s.generation,
	}
}

// Generation returns the number of successful exchanges performed so far.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Credential returns the current access credential, nil before the first
// successful exchange.
func (s *Session) Credential() *AccessCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Identity returns the authenticated user's profile, nil before the first
// successful exchange.
func (s *Session) Identity() *UserIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// replace installs the result of a completed exchange. An empty sessionToken
// keeps the current value; the session token is never cleared once set, only
// superseded by a newer server-issued value.
func (s *Session) replace(sessionToken string, credential *AccessCredential, identity *UserIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionToken != "" {
		s.sessionToken = sessionToken
	}
	s.credential = credential
	s.identity = identity
	s.generation++
}
