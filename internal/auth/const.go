// Package auth implements the Nintendo account OAuth2 flow with PKCE
// (Proof Key for Code Exchange) used by the parental-controls mobile app.
// It covers login URL generation, the two-tier token exchange that turns a
// session_token_code into a long-lived session token and then into a bearer
// access token, and transparent reauthentication when the bearer expires.
package auth

// OAuth configuration constants for the Nintendo account service.
// The parameter names and the grant type are fixed by the vendor and must
// match exactly.
const (
	// ClientID identifies the parental-controls mobile application.
	ClientID = "54789befb391a838"

	// GrantType is the vendor-specific grant used to exchange a session
	// token for a bearer access token.
	GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token"

	// RedirectURI is the custom-scheme URI the interactive login redirects
	// to. There is no localhost callback; the user copies the redirect URL
	// out of the browser.
	RedirectURI = "npf" + ClientID + "://auth"

	// Scope is the full scope list requested at login. The vendor expects
	// literal "+" separators in the encoded URL.
	Scope = "openid+user+user.mii+moonUser:administration+moonDevice:create+moonOwnedDevice:administration+moonParentalControlSetting+moonParentalControlSetting:update+moonParentalControlSettingState+moonPairingState+moonSmartDevice:administration+moonDailySummary+moonMonthlySummary"

	// AuthorizeURL is the interactive authorization endpoint.
	AuthorizeURL = "https://accounts.nintendo.com/connect/1.0.0/authorize"

	// SessionTokenURL exchanges a session_token_code plus the PKCE verifier
	// for a long-lived session token.
	SessionTokenURL = "https://accounts.nintendo.com/connect/1.0.0/api/session_token"

	// TokenURL exchanges a session token for an access/id token pair.
	TokenURL = "https://accounts.nintendo.com/connect/1.0.0/api/token"

	// MyAccountURL returns the authenticated user's profile.
	MyAccountURL = "https://api.accounts.nintendo.com/2.0.0/users/me"
)
