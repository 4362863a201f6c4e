package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCECodes holds the verification codes for the OAuth2 PKCE flow together
// with the anti-CSRF state parameter. A PKCECodes value is created fresh per
// login attempt, never mutated, and discarded once the token exchange
// completes.
type PKCECodes struct {
	// CodeVerifier is the cryptographically random string used to correlate
	// the authorization request to the token request.
	CodeVerifier string `json:"code_verifier"`
	// CodeChallenge is the SHA256 hash of the code verifier, base64url-encoded.
	CodeChallenge string `json:"code_challenge"`
	// State is a random value binding the redirect back to this login attempt.
	State string `json:"state"`
}

// GeneratePKCECodes generates a PKCE code verifier, its derived challenge and
// a random state parameter following RFC 7636. Only the challenge travels in
// the login URL; the verifier is presented at token exchange time so that
// only the client that initiated the request can redeem the code.
func GeneratePKCECodes() (*PKCECodes, error) {
	codeVerifier, err := randomURLSafe(64)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := randomURLSafe(36)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: generateCodeChallenge(codeVerifier),
		State:         state,
	}, nil
}

// randomURLSafe returns n random bytes encoded as unpadded URL-safe base64.
// 64 bytes encode to roughly 86 characters, inside the 43-128 character
// verifier bounds of RFC 7636.
func randomURLSafe(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes), nil
}

// generateCodeChallenge creates a SHA256 hash of the code verifier and
// encodes it using URL-safe base64 encoding without padding (the S256
// challenge method).
func generateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}
