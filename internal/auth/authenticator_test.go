package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// vendorStub mocks the three vendor endpoints consumed by the flow.
type vendorStub struct {
	server *httptest.Server

	mu               sync.Mutex
	sessionTokenHits int
	tokenHits        int
	accountHits      int
	lastVerifier     string
	lastCode         string

	sessionToken string
	tokenStatus  int
	tokenBody    string
	failUserInfo bool
	tokenGate    chan struct{}
}

func newVendorStub(t *testing.T) *vendorStub {
	t.Helper()
	stub := &vendorStub{sessionToken: "session-token-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/session_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		stub.mu.Lock()
		stub.sessionTokenHits++
		stub.lastVerifier = r.PostFormValue("session_token_code_verifier")
		stub.lastCode = r.PostFormValue("session_token_code")
		token := stub.sessionToken
		stub.mu.Unlock()
		fmt.Fprintf(w, `{"session_token":%q,"code":"ignored"}`, token)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		gate := stub.tokenGate
		stub.mu.Unlock()
		if gate != nil {
			<-gate
		}
		stub.mu.Lock()
		stub.tokenHits++
		hits := stub.tokenHits
		status := stub.tokenStatus
		body := stub.tokenBody
		stub.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprint(w, body)
			return
		}
		fmt.Fprintf(w, `{"access_token":"at-%d","id_token":"it-%d","expires_in":900,"scope":["openid","user"],"token_type":"Bearer"}`, hits, hits)
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.accountHits++
		fail := stub.failUserInfo
		stub.mu.Unlock()
		if fail {
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"account-1","nickname":"Tester","country":"GB","language":"en-GB"}`)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *vendorStub) endpoints() Endpoints {
	return Endpoints{
		Authorize:    s.server.URL + "/authorize",
		SessionToken: s.server.URL + "/session_token",
		Token:        s.server.URL + "/token",
		MyAccount:    s.server.URL + "/users/me",
	}
}

func (s *vendorStub) counts() (sessionToken, token, account int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionTokenHits, s.tokenHits, s.accountHits
}

func TestBuildLoginURL(t *testing.T) {
	t.Parallel()

	a, err := NewLogin(nil)
	if err != nil {
		t.Fatalf("NewLogin() error = %v", err)
	}

	loginURL := a.LoginURL()
	for _, want := range []string{
		"https://accounts.nintendo.com/connect/1.0.0/authorize?",
		"client_id=" + ClientID,
		"response_type=session_token_code",
		"session_token_code_challenge=" + a.pkce.CodeChallenge,
		"session_token_code_challenge_method=S256",
		"state=" + a.pkce.State,
		"scope=openid+user+user.mii",
	} {
		if !strings.Contains(loginURL, want) {
			t.Errorf("login URL missing %q: %s", want, loginURL)
		}
	}
	if strings.Contains(loginURL, "%2B") {
		t.Errorf("scope separators must stay literal plus signs: %s", loginURL)
	}

	// Pure function of the PKCE context.
	if rebuilt := a.buildLoginURL(a.pkce); rebuilt != loginURL {
		t.Errorf("buildLoginURL is not deterministic:\n%s\n%s", rebuilt, loginURL)
	}
}

func TestParseRedirectURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantCode  string
		wantState string
		wantErr   bool
	}{
		{
			"artifact in fragment",
			"npf54789befb391a838://auth#session_state=ss&session_token_code=CODE1&state=xyz",
			"CODE1", "xyz", false,
		},
		{
			"artifact in query",
			"https://example.invalid/callback?session_token_code=CODE2&state=abc",
			"CODE2", "abc", false,
		},
		{
			"query wins over fragment",
			"https://example.invalid/cb?session_token_code=QUERY&state=s1#session_token_code=FRAG",
			"QUERY", "s1", false,
		},
		{
			"missing artifact",
			"npf54789befb391a838://auth#session_state=ss&state=xyz",
			"", "", true,
		},
		{
			"unparsable URL",
			"://not-a-url",
			"", "", true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, state, err := parseRedirectURL(tt.raw)
			if tt.wantErr {
				var invalidRedirect *InvalidRedirectError
				if !errors.As(err, &invalidRedirect) {
					t.Fatalf("error = %v, want InvalidRedirectError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRedirectURL() error = %v", err)
			}
			if code != tt.wantCode || state != tt.wantState {
				t.Errorf("got (%q, %q), want (%q, %q)", code, state, tt.wantCode, tt.wantState)
			}
		})
	}
}

func TestCompleteLoginStateMismatch(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a, err := NewLogin(nil, WithEndpoints(stub.endpoints()))
	if err != nil {
		t.Fatalf("NewLogin() error = %v", err)
	}

	redirect := "npf54789befb391a838://auth#session_token_code=ARTIFACT&state=not-the-right-state"
	err = a.CompleteLogin(context.Background(), redirect)

	var mismatch *StateMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want StateMismatchError", err)
	}
	if a.Session().Generation() != 0 {
		t.Errorf("generation = %d, session state must be untouched", a.Session().Generation())
	}
	if sessionHits, tokenHits, _ := stub.counts(); sessionHits != 0 || tokenHits != 0 {
		t.Errorf("no vendor endpoint should have been called, got session=%d token=%d", sessionHits, tokenHits)
	}
}

func TestCompleteLogin(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)
	stub.sessionToken = "issued-session-token"

	a, err := NewLogin(nil, WithEndpoints(stub.endpoints()))
	if err != nil {
		t.Fatalf("NewLogin() error = %v", err)
	}
	verifier := a.pkce.CodeVerifier

	redirect := fmt.Sprintf("npf54789befb391a838://auth#session_state=ss&session_token_code=ARTIFACT&state=%s", a.pkce.State)
	if err = a.CompleteLogin(context.Background(), redirect); err != nil {
		t.Fatalf("CompleteLogin() error = %v", err)
	}

	snapshot := a.Session().Snapshot()
	if snapshot.SessionToken != "issued-session-token" {
		t.Errorf("session token = %q, want the endpoint-issued value", snapshot.SessionToken)
	}
	if snapshot.Generation != 1 {
		t.Errorf("generation = %d, want 1", snapshot.Generation)
	}
	if snapshot.Credential == nil || snapshot.Credential.AccessToken == "" || snapshot.Credential.IDToken == "" {
		t.Fatalf("credential not populated: %+v", snapshot.Credential)
	}
	if snapshot.Identity == nil || snapshot.Identity.UserID != "account-1" {
		t.Fatalf("identity not populated: %+v", snapshot.Identity)
	}

	stub.mu.Lock()
	gotVerifier, gotCode := stub.lastVerifier, stub.lastCode
	stub.mu.Unlock()
	if gotVerifier != verifier {
		t.Errorf("verifier sent = %q, want the PKCE verifier", gotVerifier)
	}
	if gotCode != "ARTIFACT" {
		t.Errorf("session_token_code sent = %q, want ARTIFACT", gotCode)
	}

	// The PKCE context is one-shot.
	if a.pkce != nil {
		t.Error("PKCE context must be discarded after a completed exchange")
	}
}

func TestCompleteLoginWithStoredToken(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	before := time.Now()
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}

	snapshot := a.Session().Snapshot()
	if snapshot.SessionToken != "abc123" {
		t.Errorf("session token = %q, want abc123", snapshot.SessionToken)
	}
	if snapshot.Credential.AccessToken == "" || snapshot.Credential.IDToken == "" {
		t.Error("access credential not populated")
	}
	if !snapshot.Credential.ExpiresAt.After(before) {
		t.Errorf("expires_at = %v, want strictly after the call time", snapshot.Credential.ExpiresAt)
	}
	if sessionHits, _, _ := stub.counts(); sessionHits != 0 {
		t.Errorf("session token endpoint called %d times, stored-token login must skip it", sessionHits)
	}
}

func TestPartialFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)
	stub.failUserInfo = true

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	err := a.CompleteLoginWithStoredToken(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected user-info failure to surface")
	}

	snapshot := a.Session().Snapshot()
	if snapshot.Generation != 0 {
		t.Errorf("generation = %d, want 0 after failed exchange", snapshot.Generation)
	}
	if snapshot.Credential != nil {
		t.Error("credential must not be installed by a failed exchange")
	}
	if _, tokenHits, _ := stub.counts(); tokenHits != 1 {
		t.Errorf("token endpoint hits = %d, want 1", tokenHits)
	}
}

func TestRefreshIdempotence(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}
	base := a.Session().Generation()

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}

	snapshot := a.Session().Snapshot()
	if snapshot.Generation != base+2 {
		t.Errorf("generation = %d, want %d", snapshot.Generation, base+2)
	}
	if !snapshot.Credential.ExpiresAt.After(time.Now()) {
		t.Error("final credential is stale")
	}
	// The three exchanges mint three distinct credentials.
	if snapshot.Credential.AccessToken != "at-3" {
		t.Errorf("access token = %q, want the last minted value", snapshot.Credential.AccessToken)
	}
	// Identity is fetched once and reused afterwards.
	if _, _, accountHits := stub.counts(); accountHits != 1 {
		t.Errorf("user info fetched %d times, want once", accountHits)
	}
}

func TestRefreshRevokedSessionToken(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)
	stub.tokenStatus = http.StatusBadRequest
	stub.tokenBody = `{"error":"invalid_grant","error_description":"The provided session token is invalid"}`

	a := NewWithSessionToken(nil, "revoked", WithEndpoints(stub.endpoints()))
	err := a.Refresh(context.Background())

	var reauth *ReauthenticationError
	if !errors.As(err, &reauth) {
		t.Fatalf("error = %v, want ReauthenticationError", err)
	}
	if reauth.Code != "invalid_grant" {
		t.Errorf("error code = %q, want invalid_grant", reauth.Code)
	}
	if !IsReauthenticationError(err) {
		t.Error("IsReauthenticationError() = false, want true")
	}
	if IsTransient(err) {
		t.Error("a revoked session token is terminal, not transient")
	}
	if a.Session().Generation() != 0 {
		t.Error("failed refresh must leave session state untouched")
	}
}

func TestRefreshTransientServerError(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)
	stub.tokenStatus = http.StatusServiceUnavailable
	stub.tokenBody = `{"error":"temporarily_unavailable"}`

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	err := a.Refresh(context.Background())
	if !IsTransient(err) {
		t.Fatalf("error = %v, want a transient TransportError", err)
	}
	if IsReauthenticationError(err) {
		t.Error("a 5xx must not be classified as terminal")
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}
	_, loginTokenHits, _ := stub.counts()

	gate := make(chan struct{})
	stub.mu.Lock()
	stub.tokenGate = gate
	stub.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = a.Refresh(context.Background())
		}(i)
	}

	// Give every goroutine time to join the in-flight refresh, then release it.
	time.Sleep(200 * time.Millisecond)
	close(gate)
	stub.mu.Lock()
	stub.tokenGate = nil
	stub.mu.Unlock()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Refresh() #%d error = %v", i, err)
		}
	}
	if _, tokenHits, _ := stub.counts(); tokenHits != loginTokenHits+1 {
		t.Errorf("token endpoint hits = %d, want %d: concurrent refreshes must share one flight", tokenHits, loginTokenHits+1)
	}
	if generation := a.Session().Generation(); generation != 2 {
		t.Errorf("generation = %d, want 2", generation)
	}
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}
	base := a.Session().Generation()

	// The flight is detached from the caller's context, so a cancelled
	// caller still completes the refresh the waiters share.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() with cancelled caller context error = %v", err)
	}
	if got := a.Session().Generation(); got != base+1 {
		t.Errorf("generation = %d, want %d", got, base+1)
	}
}

func TestSessionTokenNeverCleared(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if token := a.Session().SessionToken(); token != "abc123" {
		t.Errorf("session token = %q, refresh must not clear it", token)
	}
}

func TestAccessCredentialScopes(t *testing.T) {
	t.Parallel()
	stub := newVendorStub(t)

	a := NewWithSessionToken(nil, "abc123", WithEndpoints(stub.endpoints()))
	if err := a.CompleteLoginWithStoredToken(context.Background(), "abc123"); err != nil {
		t.Fatalf("CompleteLoginWithStoredToken() error = %v", err)
	}

	credential := a.Session().Credential()
	if len(credential.Scopes) != 2 || credential.Scopes[0] != "openid" || credential.Scopes[1] != "user" {
		t.Errorf("scopes = %v, want the server-declared scope list", credential.Scopes)
	}
}
