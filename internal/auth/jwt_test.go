package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// newTestTokenService creates an access TokenService with a fixed secret
// so tests are deterministic.
func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_Defaults(t *testing.T) {
	ts := newTestTokenService(t)
	if ts.TTL() != 30*time.Minute {
		t.Errorf("TTL() = %v, want 30m", ts.TTL())
	}
}

func TestNewTokenService_RejectsZeroTTL(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars", WithTTL(0))
	if err == nil {
		t.Fatal("NewTokenService() should reject a zero lifetime")
	}
}

// =========================================================================
// GENERATE / VALIDATE TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("ana@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("Generate() token has %d dots, want 2", got)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("ana@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject != "ana@example.com" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ana@example.com")
	}
	if claims.TokenID == "" {
		t.Error("TokenID is empty")
	}
	if until := time.Until(claims.ExpiresAt); until <= 29*time.Minute || until > 30*time.Minute {
		t.Errorf("ExpiresAt is %v from now, want about 30m", until)
	}
}

func TestGenerate_EachTokenHasOwnID(t *testing.T) {
	ts := newTestTokenService(t)

	t1, _ := ts.Generate("ana@example.com")
	t2, _ := ts.Generate("ana@example.com")

	c1, err := ts.Validate(t1)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := ts.Validate(t2)
	if err != nil {
		t.Fatal(err)
	}
	if c1.TokenID == c2.TokenID {
		t.Error("two tokens share a jti; logout of one would revoke the other")
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("ana@example.com", -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("ana@example.com")
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := ts1.Generate("ana@example.com")

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_ResetTokenIsNotAnAccessToken(t *testing.T) {
	// Same secret on purpose: only the audience separates them here.
	access := newTestTokenService(t)
	reset := newTestTokenService(t, WithAudience(AudienceReset), WithTTL(15*time.Minute))

	token, err := reset.Generate("ana@example.com")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := access.Validate(token); err == nil {
		t.Fatal("access service accepted a password-reset token")
	}
	if _, err := reset.Validate(token); err != nil {
		t.Fatalf("reset service rejected its own token: %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.Validate(in); err == nil {
			t.Errorf("Validate(%q) should fail", in)
		}
	}
}

func TestValidate_EmptySubjectRejected(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("")
	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject a token without subject")
	}
}
