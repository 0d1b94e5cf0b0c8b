package guard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/profile"
)

const testSecret = "test-signing-secret-0123456789abcdef"

func testVerifier(t *testing.T) *credential.Verifier {
	t.Helper()
	v, err := credential.NewVerifier(testSecret, "ludo_session")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func bearerRequest(t *testing.T, userID uuid.UUID, email, sessionID string, issuedAt time.Time) *http.Request {
	t.Helper()
	raw, err := credential.Sign(testSecret, userID, email, sessionID, issuedAt)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/app", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	return r
}

func activeProfile(userID uuid.UUID, email string, lastLoginAt time.Time, sessionID string) profile.Profile {
	future := time.Now().UTC().Add(365 * 24 * time.Hour)
	ref := profile.SessionRef{DeviceID: "fp1", SessionToken: sessionID}
	encoded, _ := ref.Encode()
	ll := lastLoginAt
	return profile.Profile{
		UserID:             userID,
		Email:              email,
		AccountExpiresAt:   &future,
		LastLoginAt:        &ll,
		LastLoginSessionID: encoded,
	}
}

func TestValidate_NoCredentialRedirectsToLogin(t *testing.T) {
	v := NewSessionValidator(nil, testVerifier(t), profile.NewMemoryStore())

	r := httptest.NewRequest(http.MethodGet, "/app", nil)
	d := v.Validate(r.Context(), r, time.Now().UTC())

	if d.Allowed {
		t.Fatalf("expected denial without credential")
	}
	if d.Redirect.Target != TargetLogin {
		t.Fatalf("redirect = %q, want %q", d.Redirect.Target, TargetLogin)
	}
	if len(d.Redirect.Params) != 0 {
		t.Fatalf("plain login redirect must carry no error marker, got %v", d.Redirect.Params)
	}
}

func TestValidate_InvalidCredentialRedirectsWithMarker(t *testing.T) {
	v := NewSessionValidator(nil, testVerifier(t), profile.NewMemoryStore())

	r := httptest.NewRequest(http.MethodGet, "/app", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	d := v.Validate(r.Context(), r, time.Now().UTC())

	if d.Allowed || d.Redirect.Target != TargetLogin {
		t.Fatalf("expected login redirect, got %+v", d)
	}
	if d.Redirect.Params.Get("error") == "" {
		t.Fatalf("expected an error marker for invalid credentials")
	}
}

func TestValidate_MissingProfileRedirectsToLogin(t *testing.T) {
	v := NewSessionValidator(nil, testVerifier(t), profile.NewMemoryStore())
	now := time.Now().UTC()

	r := bearerRequest(t, uuid.New(), "a@b.com", "sess-1", now)
	d := v.Validate(r.Context(), r, now)

	if d.Allowed || d.Redirect.Target != TargetLogin {
		t.Fatalf("expected login redirect for missing profile, got %+v", d)
	}
	if d.Redirect.Params.Get("error") != "profile_missing" {
		t.Fatalf("expected profile_missing marker, got %v", d.Redirect.Params)
	}
}

func TestValidate_ExpiredAccount(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)
	now := time.Now().UTC()
	userID := uuid.New()

	// Device/session match perfectly; expiry must still win.
	p := activeProfile(userID, "a@b.com", now, "sess-1")
	past := now.Add(-time.Minute)
	p.AccountExpiresAt = &past
	store.Put(p)

	r := bearerRequest(t, userID, "a@b.com", "sess-1", now)
	d := v.Validate(r.Context(), r, now)
	if d.Allowed || d.Redirect.Target != TargetAccountExpired {
		t.Fatalf("expected account-expired redirect, got %+v", d)
	}

	// Nil expiry behaves the same.
	p.AccountExpiresAt = nil
	store.Put(p)
	d = v.Validate(r.Context(), r, now)
	if d.Allowed || d.Redirect.Target != TargetAccountExpired {
		t.Fatalf("expected account-expired redirect for nil expiry, got %+v", d)
	}
}

func TestValidate_SupersessionTolerance(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)

	issuedAt := time.Now().UTC().Truncate(time.Second)
	now := issuedAt.Add(10 * time.Second)
	userID := uuid.New()

	// Newer login from another session, 4s after issuance: superseded.
	p := activeProfile(userID, "a@b.com", issuedAt.Add(4*time.Second), "newer-session")
	store.Put(p)

	r := bearerRequest(t, userID, "a@b.com", "old-session", issuedAt)
	d := v.Validate(r.Context(), r, now)
	if d.Allowed {
		t.Fatalf("4s skew beyond tolerance must supersede the session")
	}
	if d.Redirect.Target != TargetSessionExpired {
		t.Fatalf("redirect = %q, want %q", d.Redirect.Target, TargetSessionExpired)
	}
	if d.Redirect.Params.Get("email") != "a@b.com" {
		t.Fatalf("redirect must carry the email, got %v", d.Redirect.Params)
	}
	if d.Redirect.Params.Get("conflict_at") == "" {
		t.Fatalf("redirect must carry the conflicting timestamp")
	}

	// 2s skew is inside the tolerance: not superseded.
	p = activeProfile(userID, "a@b.com", issuedAt.Add(2*time.Second), "newer-session")
	store.Put(p)
	d = v.Validate(r.Context(), r, now)
	if !d.Allowed {
		t.Fatalf("2s skew within tolerance must not supersede, got %+v", d.Redirect)
	}
}

func TestValidate_OwnHeartbeatDoesNotSupersede(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)

	issuedAt := time.Now().UTC().Truncate(time.Second)
	now := issuedAt.Add(2 * time.Minute)
	userID := uuid.New()

	// last_login_at advanced by this session's own heartbeat: the stored ref
	// still names the caller's session, so no kick.
	p := activeProfile(userID, "a@b.com", issuedAt.Add(50*time.Second), "sess-1")
	store.Put(p)

	r := bearerRequest(t, userID, "a@b.com", "sess-1", issuedAt)
	d := v.Validate(r.Context(), r, now)
	if !d.Allowed {
		t.Fatalf("heartbeat-advanced timestamp for own session must not supersede, got %+v", d.Redirect)
	}
}

func TestValidate_CredentialWithoutSession(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)
	now := time.Now().UTC()
	userID := uuid.New()
	store.Put(activeProfile(userID, "a@b.com", now, "sess-1"))

	r := bearerRequest(t, userID, "a@b.com", "", now)
	d := v.Validate(r.Context(), r, now)
	if d.Allowed || d.Redirect.Target != TargetLogin {
		t.Fatalf("expected forced logout to login, got %+v", d)
	}
	if d.Redirect.Params.Get("error") != "session_missing" {
		t.Fatalf("expected session_missing marker, got %v", d.Redirect.Params)
	}
}

func TestHandleStatus(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)
	now := time.Now().UTC()
	userID := uuid.New()
	store.Put(activeProfile(userID, "a@b.com", now, "sess-1"))

	// Authenticated.
	r := bearerRequest(t, userID, "a@b.com", "sess-1", now)
	rr := httptest.NewRecorder()
	v.HandleStatus(rr, r)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `"authenticated":true`) {
		t.Fatalf("expected authenticated:true, got %s", body)
	}

	// Unauthenticated callers still get 200, with a redirect to follow.
	r = httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	rr = httptest.NewRecorder()
	v.HandleStatus(rr, r)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `"redirect":"/login"`) {
		t.Fatalf("expected login redirect in body, got %s", body)
	}
}

func TestRequirePage_RedirectsDenials(t *testing.T) {
	v := NewSessionValidator(nil, testVerifier(t), profile.NewMemoryStore())

	called := false
	h := v.RequirePage(func(w http.ResponseWriter, r *http.Request, d Decision) { called = true })

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/app", nil))

	if called {
		t.Fatalf("page handler must not run on denial")
	}
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != TargetLogin {
		t.Fatalf("Location = %q, want %q", loc, TargetLogin)
	}
}

func TestRequire_WritesErrorEnvelope(t *testing.T) {
	store := profile.NewMemoryStore()
	v := NewSessionValidator(nil, testVerifier(t), store)
	now := time.Now().UTC()

	rr := httptest.NewRecorder()
	_, ok := v.Require(rr, httptest.NewRequest(http.MethodGet, "/api/thing", nil), now)
	if ok {
		t.Fatalf("anonymous request passed Require")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_authenticated") {
		t.Fatalf("body = %s", rr.Body)
	}

	userID := uuid.New()
	store.Put(activeProfile(userID, "a@b.com", now, "sess-1"))
	rr = httptest.NewRecorder()
	d, ok := v.Require(rr, bearerRequest(t, userID, "a@b.com", "sess-1", now), now)
	if !ok || !d.Allowed {
		t.Fatalf("valid session denied: %+v", d)
	}
}

