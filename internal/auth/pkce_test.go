package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestGeneratePKCECodes(t *testing.T) {
	t.Parallel()

	pkce, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("GeneratePKCECodes() error = %v", err)
	}

	if length := len(pkce.CodeVerifier); length < 43 || length > 128 {
		t.Errorf("code verifier length = %d, want within [43, 128]", length)
	}
	if pkce.State == "" {
		t.Error("state is empty")
	}
	if pkce.State == pkce.CodeVerifier {
		t.Error("state must be generated independently of the verifier")
	}

	// The challenge is a pure function of the verifier.
	hash := sha256.Sum256([]byte(pkce.CodeVerifier))
	want := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
	if pkce.CodeChallenge != want {
		t.Errorf("code challenge = %q, want SHA256 base64url of verifier %q", pkce.CodeChallenge, want)
	}
}

func TestGeneratePKCECodesUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		pkce, err := GeneratePKCECodes()
		if err != nil {
			t.Fatalf("GeneratePKCECodes() error = %v", err)
		}
		if seen[pkce.CodeVerifier] {
			t.Fatal("verifier repeated across generations")
		}
		seen[pkce.CodeVerifier] = true
	}
}

func TestGenerateCodeChallengeDeterministic(t *testing.T) {
	t.Parallel()

	verifier := "example-verifier-value-with-enough-entropy-to-be-plausible"
	if generateCodeChallenge(verifier) != generateCodeChallenge(verifier) {
		t.Error("same verifier must yield the same challenge")
	}
}
