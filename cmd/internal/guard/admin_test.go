package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/security/token"
)

func adminSettings(cfg AdminConfig) *AdminSettings {
	if cfg.CookieName == "" {
		cfg.CookieName = "ludo_admin"
	}
	return NewAdminSettings(func() AdminConfig { return cfg })
}

func adminRequest(t *testing.T, email string) *http.Request {
	t.Helper()
	raw, err := credential.Sign(testSecret, uuid.New(), email, "sess-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	return r
}

func TestAllowlisted_CaseInsensitive(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AllowedEmails: []string{"Admin@Example.com", " second@example.com "},
	}))

	for _, email := range []string{"admin@example.com", "ADMIN@EXAMPLE.COM", "second@example.com"} {
		if !g.Allowlisted(email) {
			t.Fatalf("expected %q to be allowlisted", email)
		}
	}
	if g.Allowlisted("other@example.com") {
		t.Fatalf("unexpected allowlist hit")
	}
	if g.Allowlisted("") {
		t.Fatalf("empty email must never be allowlisted")
	}
}

func TestDecide_AllowlistedAdmin(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AllowedEmails: []string{"admin@example.com"},
	}))

	d := g.Decide(adminRequest(t, "ADMIN@example.com"), time.Now().UTC())
	if !d.Allowed {
		t.Fatalf("expected allowlisted admin to pass, got %+v", d.Redirect)
	}
}

func TestDecide_AuthenticatedNonAdminGoesToUnauthorized(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AllowedEmails: []string{"admin@example.com"},
		AdminKey:      "shared-key",
	}))

	d := g.Decide(adminRequest(t, "user@example.com"), time.Now().UTC())
	if d.Allowed {
		t.Fatalf("non-admin must be denied")
	}
	if d.Redirect.Target != TargetAdminUnauthorized {
		t.Fatalf("redirect = %q, want %q (not login: credentials are valid)", d.Redirect.Target, TargetAdminUnauthorized)
	}
}

func TestDecide_UnauthenticatedGoesToLoginWithReturnPath(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AllowedEmails: []string{"admin@example.com"},
		AdminKey:      "shared-key",
	}))

	d := g.Decide(httptest.NewRequest(http.MethodGet, "/admin/keys", nil), time.Now().UTC())
	if d.Allowed {
		t.Fatalf("anonymous caller must be denied")
	}
	if d.Redirect.Target != TargetLogin {
		t.Fatalf("redirect = %q, want %q", d.Redirect.Target, TargetLogin)
	}
	if d.Redirect.Params.Get("next") != "/admin/keys" {
		t.Fatalf("expected return path, got %v", d.Redirect.Params)
	}
}

func TestCookiePath(t *testing.T) {
	t.Setenv(token.HMACEnvKey, "")
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AdminKey: "shared-key",
	}))

	// Valid secret cookie grants access without any identity.
	r := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	r.AddCookie(&http.Cookie{Name: "ludo_admin", Value: token.DigestHex("shared-key")})
	if _, admin, _ := g.Check(r, time.Now().UTC()); !admin {
		t.Fatalf("expected valid secret cookie to grant admin")
	}

	// Wrong cookie value denies.
	r = httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	r.AddCookie(&http.Cookie{Name: "ludo_admin", Value: "wrong"})
	if _, admin, _ := g.Check(r, time.Now().UTC()); admin {
		t.Fatalf("wrong cookie must deny")
	}
}

func TestCookiePath_MisconfiguredSecretDenies(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AdminKey: "", // misconfigured
	}))

	r := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	r.AddCookie(&http.Cookie{Name: "ludo_admin", Value: token.DigestHex("")})
	if _, admin, _ := g.Check(r, time.Now().UTC()); admin {
		t.Fatalf("absent configured secret must deny regardless of cookie")
	}

	if err := g.SetAdminCookie(httptest.NewRecorder()); err != ErrAdminKeyMisconfigured {
		t.Fatalf("expected ErrAdminKeyMisconfigured, got %v", err)
	}
}

func TestVerifyAdminKey(t *testing.T) {
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{AdminKey: "shared-key"}))

	if ok, err := g.VerifyAdminKey("shared-key"); err != nil || !ok {
		t.Fatalf("expected plaintext match, got ok=%v err=%v", ok, err)
	}
	if ok, _ := g.VerifyAdminKey("other-key12"); ok {
		t.Fatalf("expected mismatch")
	}

	if _, err := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{})).VerifyAdminKey("x"); err != ErrAdminKeyMisconfigured {
		t.Fatalf("expected ErrAdminKeyMisconfigured, got %v", err)
	}
}

func TestSetAndClearAdminCookie(t *testing.T) {
	t.Setenv(token.HMACEnvKey, "")
	g := NewAdminGuard(nil, testVerifier(t), adminSettings(AdminConfig{
		AdminKey:     "shared-key",
		CookieTTL:    24 * time.Hour,
		CookieSecure: true,
	}))

	rr := httptest.NewRecorder()
	if err := g.SetAdminCookie(rr); err != nil {
		t.Fatalf("SetAdminCookie: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != token.DigestHex("shared-key") {
		t.Fatalf("cookie must carry the key digest, not the raw key")
	}
	if c.Path != "/" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}
	if c.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Fatalf("max age = %d, want 24h", c.MaxAge)
	}

	rr = httptest.NewRecorder()
	g.ClearAdminCookie(rr)
	cleared := rr.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge != -1 {
		t.Fatalf("expected expiring cookie, got %+v", cleared)
	}
}

func TestAdminSettings_Invalidate(t *testing.T) {
	loads := 0
	s := NewAdminSettings(func() AdminConfig {
		loads++
		return AdminConfig{AdminKey: "k", CookieName: "ludo_admin"}
	})

	_ = s.Current()
	_ = s.Current()
	if loads != 1 {
		t.Fatalf("expected a single lazy load, got %d", loads)
	}

	s.Invalidate()
	_ = s.Current()
	if loads != 2 {
		t.Fatalf("expected reload after Invalidate, got %d", loads)
	}
}
