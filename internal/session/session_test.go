package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedAccess(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": "access",
		"exp":        exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestSetTokensPeeksExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	s := New(nil)
	s.SetTokens(signedAccess(t, exp), "refresh-1")

	if !s.Authenticated() {
		t.Fatalf("expected an authenticated session")
	}
	s.mu.Lock()
	got := s.token.Expiry
	s.mu.Unlock()
	if !got.Equal(exp) {
		t.Fatalf("expiry not read from the token: got %v want %v", got, exp)
	}
}

func TestOpaqueAccessTokenStillUsable(t *testing.T) {
	s := New(nil)
	s.SetTokens("not-a-jwt", "refresh-1")
	if token, ok := s.AccessToken(); !ok || token != "not-a-jwt" {
		t.Fatalf("opaque token must still be stored: %q %v", token, ok)
	}
}

func TestInvalidateFiresOnce(t *testing.T) {
	fired := 0
	s := New(func() { fired++ })
	s.SetTokens("a", "r")

	s.Invalidate()
	s.Invalidate()
	s.Invalidate()

	if fired != 1 {
		t.Fatalf("signal must fire exactly once, fired %d times", fired)
	}
	if s.Authenticated() {
		t.Fatalf("invalidated session must not be authenticated")
	}
	if _, ok := s.AccessToken(); ok {
		t.Fatalf("tokens must be cleared on invalidation")
	}
}

func TestSetTokensClearsInvalidState(t *testing.T) {
	s := New(nil)
	s.SetTokens("a", "r")
	s.Invalidate()
	if !s.Invalid() {
		t.Fatalf("expected an invalid session")
	}

	// A fresh login recovers the session.
	s.SetTokens("a2", "r2")
	if s.Invalid() || !s.Authenticated() {
		t.Fatalf("new token pair must clear the invalid state")
	}
}

func TestClearIsSilent(t *testing.T) {
	fired := 0
	s := New(func() { fired++ })
	s.SetTokens("a", "r")
	s.Clear()
	if fired != 0 {
		t.Fatalf("logout must not fire the session-invalid signal")
	}
	if _, ok := s.RefreshToken(); ok {
		t.Fatalf("tokens must be gone after clear")
	}
}
