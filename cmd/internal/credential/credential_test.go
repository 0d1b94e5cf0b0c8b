package credential

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-signing-secret-0123456789abcdef"

func mustSign(t *testing.T, userID uuid.UUID, email, sid string, iat time.Time) string {
	t.Helper()
	raw, err := Sign(testSecret, userID, email, sid, iat)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return raw
}

func TestVerify_ValidToken(t *testing.T) {
	v, err := NewVerifier(testSecret, "ludo_session")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	userID := uuid.New()
	iat := time.Now().UTC().Truncate(time.Second)
	raw := mustSign(t, userID, "Pair@Example.COM", "sess-1", iat)

	id, err := v.Verify(raw, iat.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != userID {
		t.Fatalf("user id mismatch: %s != %s", id.UserID, userID)
	}
	if id.Email != "pair@example.com" {
		t.Fatalf("expected lowercased email, got %q", id.Email)
	}
	if id.SessionID != "sess-1" {
		t.Fatalf("session id mismatch: %q", id.SessionID)
	}
	if !id.IssuedAt.Equal(iat) {
		t.Fatalf("issued-at mismatch: %s != %s", id.IssuedAt, iat)
	}
}

func TestVerify_ToleratesIssuerClockAhead(t *testing.T) {
	v, err := NewVerifier(testSecret, "ludo_session")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	// The credential store is a separate service with its own clock. A token
	// stamped a couple of seconds in our future is still a fresh login, not a
	// forgery.
	now := time.Now().UTC().Truncate(time.Second)
	iat := now.Add(2 * time.Second)
	raw := mustSign(t, uuid.New(), "e@x.com", "sess-1", iat)

	id, err := v.Verify(raw, now)
	if err != nil {
		t.Fatalf("Verify with future iat: %v", err)
	}
	if !id.IssuedAt.Equal(iat) {
		t.Fatalf("issued-at mismatch: %s != %s", id.IssuedAt, iat)
	}
}

func TestVerify_Failures(t *testing.T) {
	v, _ := NewVerifier(testSecret, "ludo_session")
	now := time.Now().UTC()

	if _, err := v.Verify("", now); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("empty token: expected ErrNoCredential, got %v", err)
	}
	if _, err := v.Verify("not-a-jwt", now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("garbage token: expected ErrInvalidCredential, got %v", err)
	}

	// Wrong signing secret.
	raw, err := Sign("a-different-secret-0123456789abcdef", uuid.New(), "e@x.com", "s", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(raw, now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("forged token: expected ErrInvalidCredential, got %v", err)
	}

	// Non-UUID subject is rejected even with a valid signature.
	badSub := mustSignRawSubject(t, "not-a-uuid", now)
	if _, err := v.Verify(badSub, now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("bad subject: expected ErrInvalidCredential, got %v", err)
	}
}

func TestFromRequest_HeaderAndCookie(t *testing.T) {
	v, _ := NewVerifier(testSecret, "ludo_session")
	now := time.Now().UTC()
	raw := mustSign(t, uuid.New(), "e@x.com", "s", now)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := v.FromRequest(r, now); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("bare request: expected ErrNoCredential, got %v", err)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	if _, err := v.FromRequest(r, now); err != nil {
		t.Fatalf("header bearer: %v", err)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "ludo_session", Value: raw})
	if _, err := v.FromRequest(r, now); err != nil {
		t.Fatalf("cookie bearer: %v", err)
	}

	// Malformed Authorization scheme falls through to the (absent) cookie.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	if _, err := v.FromRequest(r, now); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("basic auth: expected ErrNoCredential, got %v", err)
	}
}

func mustSignRawSubject(t *testing.T, sub string, iat time.Time) string {
	t.Helper()
	claims := sessionClaims{
		Email:     "e@x.com",
		SessionID: "s",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sub,
			IssuedAt: jwt.NewNumericDate(iat),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}
