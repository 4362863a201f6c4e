package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/singleflight"
)

// Authenticator drives the Nintendo account login flow and owns the session
// state used by the Moon API client. One instance is shared by all domain
// objects; every component that needs authorization receives a reference to
// it rather than reading ambient globals.
//
// Concurrent refreshes are serialized behind a single-flight group so that
// callers racing on an expired credential share one in-flight refresh instead
// of issuing duplicates.
type Authenticator struct {
	httpClient *http.Client
	session    *Session
	pkce       *PKCECodes
	loginURL   string

	refreshGroup singleflight.Group

	// Endpoint URLs default to the vendor constants and are overridable in
	// tests.
	authorizeURL    string
	sessionTokenURL string
	tokenURL        string
	myAccountURL    string
}

// Endpoints groups the vendor endpoint URLs consumed by the flow. Overriding
// them is intended for tests and mock servers.
type Endpoints struct {
	Authorize    string
	SessionToken string
	Token        string
	MyAccount    string
}

// Option configures an Authenticator at construction time.
type Option func(*Authenticator)

// WithEndpoints overrides the vendor endpoint URLs.
func WithEndpoints(endpoints Endpoints) Option {
	return func(a *Authenticator) {
		if endpoints.Authorize != "" {
			a.authorizeURL = endpoints.Authorize
		}
		if endpoints.SessionToken != "" {
			a.sessionTokenURL = endpoints.SessionToken
		}
		if endpoints.Token != "" {
			a.tokenURL = endpoints.Token
		}
		if endpoints.MyAccount != "" {
			a.myAccountURL = endpoints.MyAccount
		}
	}
}

func newAuthenticator(httpClient *http.Client, session *Session, opts []Option) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	a := &Authenticator{
		httpClient:      httpClient,
		session:         session,
		authorizeURL:    AuthorizeURL,
		sessionTokenURL: SessionTokenURL,
		tokenURL:        TokenURL,
		myAccountURL:    MyAccountURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewLogin creates an Authenticator prepared for an interactive login. It
// generates a fresh PKCE context and builds the login URL for the user to
// visit. The httpClient may be nil, in which case a default client is used;
// its timeout policy governs all requests.
func NewLogin(httpClient *http.Client, opts ...Option) (*Authenticator, error) {
	pkce, err := GeneratePKCECodes()
	if err != nil {
		return nil, err
	}

	a := newAuthenticator(httpClient, NewSession(""), opts)
	a.pkce = pkce
	a.loginURL = a.buildLoginURL(pkce)
	return a, nil
}

// NewWithSessionToken creates an Authenticator seeded with a previously
// stored session token. Call CompleteLoginWithStoredToken to mint the first
// access credential.
func NewWithSessionToken(httpClient *http.Client, sessionToken string, opts ...Option) *Authenticator {
	return newAuthenticator(httpClient, NewSession(sessionToken), opts)
}

// LoginURL returns the interactive login URL, empty for authenticators
// created from a stored session token.
func (a *Authenticator) LoginURL() string { return a.loginURL }

// Session returns the session state shared with the API layer.
func (a *Authenticator) Session() *Session { return a.session }

// buildLoginURL composes the authorization endpoint URL from the PKCE
// context. It is a pure function of its input: the same PKCE context always
// yields the same URL.
func (a *Authenticator) buildLoginURL(pkce *PKCECodes) string {
	params := url.Values{
		"client_id":                           {ClientID},
		"redirect_uri":                        {RedirectURI},
		"response_type":                       {"session_token_code"},
		"scope":                               {Scope},
		"session_token_code_challenge":        {pkce.CodeChallenge},
		"session_token_code_challenge_method": {"S256"},
		"state":                               {pkce.State},
		"theme":                               {"login_form"},
	}

	// The vendor expects literal "+" separators inside the scope value.
	encoded := strings.ReplaceAll(params.Encode(), "%2B", "+")
	return fmt.Sprintf("%s?%s", a.authorizeURL, encoded)
}

// parseRedirectURL extracts the session_token_code artifact and the state
// value from the URL the login flow redirected to. Both may appear in the
// query string or in the fragment, so both sides of the "#" are consulted.
func parseRedirectURL(raw string) (code, state string, err error) {
	parsed, errParse := url.Parse(strings.TrimSpace(raw))
	if errParse != nil {
		return "", "", &InvalidRedirectError{Reason: fmt.Sprintf("cannot parse URL: %v", errParse)}
	}

	values := parsed.Query()
	if fragment := parsed.Fragment; fragment != "" {
		fragmentValues, errFragment := url.ParseQuery(fragment)
		if errFragment == nil {
			for key, vals := range fragmentValues {
				if values.Get(key) == "" && len(vals) > 0 {
					values.Set(key, vals[0])
				}
			}
		}
	}

	code = values.Get("session_token_code")
	if code == "" {
		return "", "", &InvalidRedirectError{Reason: "no session_token_code present"}
	}
	return code, values.Get("state"), nil
}

// CompleteLogin finishes an interactive login from the redirect URL captured
// after the user signed in. On success the session state is populated
// atomically; on any failure it is left untouched. The PKCE context is
// one-shot and discarded once the exchange completes.
func (a *Authenticator) CompleteLogin(ctx context.Context, redirectURL string) error {
	if a.pkce == nil {
		return &InvalidRedirectError{Reason: "authenticator holds no pending login attempt"}
	}

	code, state, err := parseRedirectURL(redirectURL)
	if err != nil {
		return err
	}
	if state != a.pkce.State {
		return &StateMismatchError{Expected: a.pkce.State, Got: state}
	}

	log.Debug("performing initial login")
	sessionToken, err := a.exchangeSessionTokenCode(ctx, code, a.pkce.CodeVerifier)
	if err != nil {
		return err
	}

	credential, identity, err := a.mintCredential(ctx, sessionToken)
	if err != nil {
		return err
	}

	a.session.replace(sessionToken, credential, identity)
	a.pkce = nil
	return nil
}

// CompleteLoginWithStoredToken mints the first access credential from a
// session token obtained in a previous interactive login, skipping the
// redirect parsing and session-token exchange steps.
func (a *Authenticator) CompleteLoginWithStoredToken(ctx context.Context, sessionToken string) error {
	credential, identity, err := a.mintCredential(ctx, sessionToken)
	if err != nil {
		return err
	}
	a.session.replace(sessionToken, credential, identity)
	return nil
}

// Refresh mints a new access credential from the held session token.
// Concurrent callers share a single in-flight refresh; the flight is detached
// from the winning caller's context so one caller's cancellation cannot fail
// the waiters sharing it. A ReauthenticationError means the session token was
// revoked server-side and the caller must restart interactive login; a
// TransportError is transient and safe to retry with backoff at the caller's
// discretion.
func (a *Authenticator) Refresh(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	_, err, _ := a.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, a.refresh(detached)
	})
	return err
}

func (a *Authenticator) refresh(ctx context.Context) error {
	sessionToken := a.session.SessionToken()
	if sessionToken == "" {
		return &ReauthenticationError{Message: "no session token held"}
	}

	log.Debug("refreshing access token")
	credential, identity, err := a.mintCredential(ctx, sessionToken)
	if err != nil {
		return err
	}

	a.session.replace("", credential, identity)
	return nil
}

// mintCredential runs the access-token exchange and, on the first exchange,
// the user-info fetch. It touches no shared state so that a failure at any
// step leaves the session exactly as it was.
func (a *Authenticator) mintCredential(ctx context.Context, sessionToken string) (*AccessCredential, *UserIdentity, error) {
	credential, err := a.fetchAccessCredential(ctx, sessionToken)
	if err != nil {
		return nil, nil, err
	}

	identity := a.session.Identity()
	if identity == nil {
		identity, err = a.fetchUserIdentity(ctx, credential.AccessToken)
		if err != nil {
			return nil, nil, err
		}
	}
	return credential, identity, nil
}

// exchangeSessionTokenCode redeems the authorization artifact plus the PKCE
// verifier for a long-lived session token.
func (a *Authenticator) exchangeSessionTokenCode(ctx context.Context, code, verifier string) (string, error) {
	form := url.Values{
		"client_id":                   {ClientID},
		"session_token_code":          {code},
		"session_token_code_verifier": {verifier},
	}

	status, body, err := a.do(ctx, http.MethodPost, a.sessionTokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), "")
	if err != nil {
		return "", &TransportError{Op: "session token exchange", Err: err}
	}
	if status != http.StatusOK {
		return "", exchangeFailure("session token exchange", status, body)
	}

	sessionToken := gjson.GetBytes(body, "session_token").String()
	if sessionToken == "" {
		return "", &TokenExchangeError{StatusCode: status, Code: "invalid_response", Description: "no session_token in response"}
	}
	return sessionToken, nil
}

// fetchAccessCredential exchanges the session token for an access/id token
// pair. A 400 response means the session token itself was rejected, which is
// terminal for this session.
func (a *Authenticator) fetchAccessCredential(ctx context.Context, sessionToken string) (*AccessCredential, error) {
	requestBody := []byte(`{}`)
	requestBody, _ = sjson.SetBytes(requestBody, "client_id", ClientID)
	requestBody, _ = sjson.SetBytes(requestBody, "grant_type", GrantType)
	requestBody, _ = sjson.SetBytes(requestBody, "session_token", sessionToken)

	status, body, err := a.do(ctx, http.MethodPost, a.tokenURL, "application/json", strings.NewReader(string(requestBody)), "")
	if err != nil {
		return nil, &TransportError{Op: "access token exchange", Err: err}
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusBadRequest:
		return nil, &ReauthenticationError{
			Code:    gjson.GetBytes(body, "error").String(),
			Message: "session token rejected by token endpoint",
		}
	default:
		return nil, exchangeFailure("access token exchange", status, body)
	}

	result := gjson.ParseBytes(body)
	credential := &AccessCredential{
		AccessToken: result.Get("access_token").String(),
		IDToken:     result.Get("id_token").String(),
		ExpiresAt:   time.Now().Add(time.Duration(result.Get("expires_in").Int()) * time.Second),
	}
	for _, scope := range result.Get("scope").Array() {
		credential.Scopes = append(credential.Scopes, scope.String())
	}
	if credential.AccessToken == "" {
		return nil, &TokenExchangeError{StatusCode: status, Code: "invalid_response", Description: "no access_token in response"}
	}
	return credential, nil
}

// fetchUserIdentity retrieves the authenticated user's profile with the
// freshly minted bearer token.
func (a *Authenticator) fetchUserIdentity(ctx context.Context, accessToken string) (*UserIdentity, error) {
	status, body, err := a.do(ctx, http.MethodGet, a.myAccountURL, "", nil, accessToken)
	if err != nil {
		return nil, &TransportError{Op: "user info fetch", Err: err}
	}
	if status != http.StatusOK {
		return nil, exchangeFailure("user info fetch", status, body)
	}

	result := gjson.ParseBytes(body)
	identity := &UserIdentity{
		UserID:   result.Get("id").String(),
		Nickname: result.Get("nickname").String(),
		Country:  result.Get("country").String(),
		Language: result.Get("language").String(),
	}
	if identity.UserID == "" {
		return nil, &TokenExchangeError{StatusCode: status, Code: "invalid_response", Description: "no account id in response"}
	}
	return identity, nil
}

// do sends a single HTTP request and returns the status and body. Transport
// failures are returned as-is for the caller to wrap with the operation name.
func (a *Authenticator) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, bearer string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, responseBody, nil
}

// exchangeFailure classifies a non-success vendor response: 5xx statuses are
// transient, everything else is a hard rejection of the exchange inputs.
func exchangeFailure(op string, status int, body []byte) error {
	if status >= http.StatusInternalServerError {
		return &TransportError{Op: op, StatusCode: status}
	}
	return &TokenExchangeError{
		StatusCode:  status,
		Code:        gjson.GetBytes(body, "error").String(),
		Description: gjson.GetBytes(body, "error_description").String(),
	}
}
