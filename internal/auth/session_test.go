package auth

import (
	"testing"
	"time"
)

func TestSessionReplace(t *testing.T) {
	t.Parallel()

	session := NewSession("stored")
	if session.Generation() != 0 {
		t.Fatalf("generation = %d, want 0", session.Generation())
	}

	credential := &AccessCredential{AccessToken: "at", IDToken: "it", ExpiresAt: time.Now().Add(time.Hour)}
	identity := &UserIdentity{UserID: "account-1"}
	session.replace("", credential, identity)

	snapshot := session.Snapshot()
	if snapshot.Generation != 1 {
		t.Errorf("generation = %d, want 1", snapshot.Generation)
	}
	if snapshot.SessionToken != "stored" {
		t.Errorf("session token = %q, an empty replacement must keep the current value", snapshot.SessionToken)
	}

	session.replace("newer", credential, identity)
	if token := session.SessionToken(); token != "newer" {
		t.Errorf("session token = %q, a server-issued value must supersede", token)
	}
	if session.Generation() != 2 {
		t.Errorf("generation = %d, want 2", session.Generation())
	}
}

func TestAccessCredentialExpiresWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		credential *AccessCredential
		lead       time.Duration
		want       bool
	}{
		{"nil credential", nil, time.Minute, true},
		{"already expired", &AccessCredential{ExpiresAt: time.Now().Add(-time.Minute)}, time.Minute, true},
		{"inside the lead", &AccessCredential{ExpiresAt: time.Now().Add(30 * time.Second)}, time.Minute, true},
		{"comfortably fresh", &AccessCredential{ExpiresAt: time.Now().Add(time.Hour)}, time.Minute, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.credential.ExpiresWithin(tt.lead); got != tt.want {
				t.Errorf("ExpiresWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}
