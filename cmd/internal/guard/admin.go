package guard

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/profile"
	"loveludo/cmd/security/password"
	"loveludo/cmd/security/token"
)

// ErrAdminKeyMisconfigured is returned when the legacy secret path is checked
// without a configured admin key.
var ErrAdminKeyMisconfigured = errors.New("admin key not configured")

// AdminConfig is the admin guard's configuration snapshot.
type AdminConfig struct {
	// AllowedEmails is the comma-separated allowlist, already split.
	AllowedEmails []string

	// AdminKey is the shared secret for the legacy cookie path. May hold an
	// argon2id PHC string instead of the raw key.
	AdminKey string

	CookieName   string
	CookieTTL    time.Duration
	CookieSecure bool
}

// AdminSettings is the process-wide, read-mostly settings cache. It is only
// refreshed by an explicit Invalidate, never by implicit env re-reads.
type AdminSettings struct {
	load func() AdminConfig

	mu     sync.RWMutex
	cur    AdminConfig
	loaded bool
}

// NewAdminSettings wraps a loader. The loader runs lazily on first use and
// again after each Invalidate.
func NewAdminSettings(load func() AdminConfig) *AdminSettings {
	return &AdminSettings{load: load}
}

// Current returns the cached configuration, loading it if needed.
func (s *AdminSettings) Current() AdminConfig {
	s.mu.RLock()
	if s.loaded {
		cfg := s.cur
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cur = s.load()
		s.loaded = true
	}
	return s.cur
}

// Invalidate drops the cached snapshot; the next Current reloads.
func (s *AdminSettings) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// AdminGuard gates administrative routes and pages.
type AdminGuard struct {
	log      *slog.Logger
	verifier *credential.Verifier
	settings *AdminSettings
}

// NewAdminGuard constructs an AdminGuard.
func NewAdminGuard(log *slog.Logger, verifier *credential.Verifier, settings *AdminSettings) *AdminGuard {
	if log == nil {
		log = slog.Default()
	}
	return &AdminGuard{log: log, verifier: verifier, settings: settings}
}

// Settings exposes the underlying cache (for the invalidation route).
func (g *AdminGuard) Settings() *AdminSettings { return g.settings }

// Allowlisted reports whether email is on the admin allowlist
// (case-insensitive exact match).
func (g *AdminGuard) Allowlisted(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, allowed := range g.settings.Current().AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(allowed), email) {
			return true
		}
	}
	return false
}

// VerifyAdminKey checks a submitted key against the configured admin key.
// The configured value may be an argon2id hash or the raw key.
func (g *AdminGuard) VerifyAdminKey(submitted string) (bool, error) {
	configured := strings.TrimSpace(g.settings.Current().AdminKey)
	if configured == "" {
		return false, ErrAdminKeyMisconfigured
	}
	if password.IsEncodedHash(configured) {
		return password.Verify(configured, submitted)
	}
	if len(submitted) == 0 || len(submitted) != len(configured) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(configured)) == 1, nil
}

// expectedCookieValue derives the admin cookie value from the configured key
// so the raw secret never travels in a cookie.
func (g *AdminGuard) expectedCookieValue() (string, error) {
	configured := strings.TrimSpace(g.settings.Current().AdminKey)
	if configured == "" {
		return "", ErrAdminKeyMisconfigured
	}
	return token.DigestHex(configured), nil
}

// CookieValid reports whether the request carries a valid admin secret
// cookie. A missing configured secret means the check is misconfigured and
// always denies.
func (g *AdminGuard) CookieValid(r *http.Request) bool {
	expected, err := g.expectedCookieValue()
	if err != nil {
		g.log.Warn("guard.admin.misconfigured", "err", err)
		return false
	}
	c, err := r.Cookie(g.settings.Current().CookieName)
	if err != nil {
		return false
	}
	return token.EqualHex(strings.TrimSpace(c.Value), expected)
}

// Check evaluates the admin guard for a request: allowlisted identity first,
// then the legacy secret cookie.
//
// Outcomes:
//   - admin == true: access granted (identity may be zero for the cookie path)
//   - admin == false, authed == true: valid user lacking privilege
//   - admin == false, authed == false: no valid identity and no valid cookie
func (g *AdminGuard) Check(r *http.Request, now time.Time) (identity credential.Identity, admin bool, authed bool) {
	id, err := g.verifier.FromRequest(r, now)
	if err == nil {
		if g.Allowlisted(id.Email) {
			return id, true, true
		}
		authed = true
		identity = id
	}

	if g.CookieValid(r) {
		return identity, true, authed
	}

	return identity, false, authed
}

// Decide maps a Check outcome to a page navigation decision.
// Unauthenticated callers go to login with a return path; authenticated
// non-admins go to the unauthorized page, never back to login.
func (g *AdminGuard) Decide(r *http.Request, now time.Time) Decision {
	id, admin, authed := g.Check(r, now)
	if admin {
		return allow(id, profile.Profile{})
	}
	if authed {
		return redirectTo(TargetAdminUnauthorized, nil)
	}
	return redirectTo(TargetLogin, url.Values{"next": {r.URL.Path}})
}

// RequirePage wraps an admin page handler with redirect semantics.
func (g *AdminGuard) RequirePage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r, time.Now().UTC())
		if !d.Allowed {
			http.Redirect(w, r, d.Redirect.URL(), http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// Require wraps an admin API handler: denials become 401 envelopes.
func (g *AdminGuard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, admin, _ := g.Check(r, time.Now().UTC())
		if !admin {
			WriteError(w, http.StatusUnauthorized, "not_admin", "admin access required")
			return
		}
		next(w, r)
	}
}

// SetAdminCookie issues the secret-bearing cookie after a successful key
// entry: path /, 24h default, http-only, secure in production, strict
// same-site.
func (g *AdminGuard) SetAdminCookie(w http.ResponseWriter) error {
	expected, err := g.expectedCookieValue()
	if err != nil {
		return err
	}
	cfg := g.settings.Current()
	ttl := cfg.CookieTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    expected,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// ClearAdminCookie expires the admin cookie.
func (g *AdminGuard) ClearAdminCookie(w http.ResponseWriter) {
	cfg := g.settings.Current()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
