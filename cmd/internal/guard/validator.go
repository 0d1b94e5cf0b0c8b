// Package guard implements the request-time checks that gate protected pages
// and API routes: session validation with single-device enforcement, the
// device-fingerprint check, the login-status endpoint polled by clients, and
// the admin guard.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/profile"
)

// SupersessionTolerance absorbs the clock/latency skew between token issuance
// and the profile write that immediately follows a fresh login. Without it a
// user's own fresh login would self-invalidate.
const SupersessionTolerance = 3 * time.Second

// SessionValidator decides, per request, whether the bearer is an
// authenticated, non-expired, single-device session.
type SessionValidator struct {
	log      *slog.Logger
	verifier *credential.Verifier
	profiles profile.Store
}

// NewSessionValidator constructs a SessionValidator.
func NewSessionValidator(log *slog.Logger, verifier *credential.Verifier, profiles profile.Store) *SessionValidator {
	if log == nil {
		log = slog.Default()
	}
	return &SessionValidator{log: log, verifier: verifier, profiles: profiles}
}

// Validate runs the full check chain. It never returns an error: every
// failure path resolves to a redirect decision.
func (v *SessionValidator) Validate(ctx context.Context, r *http.Request, now time.Time) Decision {
	id, err := v.verifier.FromRequest(r, now)
	switch {
	case errors.Is(err, credential.ErrNoCredential):
		return redirectTo(TargetLogin, nil)
	case err != nil:
		return redirectTo(TargetLogin, url.Values{"error": {"session_invalid"}})
	}

	// A credential without a session id means the session object is gone:
	// force logout rather than trusting the bare identity.
	if id.SessionID == "" {
		return redirectTo(TargetLogin, url.Values{"error": {"session_missing"}})
	}

	p, err := v.profiles.Get(ctx, id.UserID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return redirectTo(TargetLogin, url.Values{"error": {"profile_missing"}})
	case err != nil:
		// Upstream store failure: log and fall back to login rather than
		// surfacing an error to the rendering layer.
		v.log.Error("guard.validate.profile.fail", "err", err, "user_id", id.UserID)
		return redirectTo(TargetLogin, url.Values{"error": {"unavailable"}})
	}

	if p.Expired(now) {
		return redirectTo(TargetAccountExpired, nil)
	}

	if superseded(p, id) {
		params := url.Values{
			"email":       {p.Email},
			"conflict_at": {p.LastLoginAt.UTC().Format(time.RFC3339)},
		}
		return redirectTo(TargetSessionExpired, params)
	}

	return allow(id, p)
}

// superseded reports whether a newer login has taken over the account.
//
// The profile's last_login_at exceeding the credential's issued-at by more
// than the tolerance is the primary signal. Heartbeats also advance
// last_login_at, so timestamp skew alone is not proof of a second device:
// when the stored session ref still resolves to the caller's own session id,
// the write came from this session and the caller keeps its seat.
func superseded(p profile.Profile, id credential.Identity) bool {
	if p.LastLoginAt == nil {
		return false
	}
	if p.LastLoginAt.Sub(id.IssuedAt) <= SupersessionTolerance {
		return false
	}
	if ref, ok := profile.DecodeSessionRef(p.LastLoginSessionID); ok && ref.SessionToken == id.SessionID {
		return false
	}
	return true
}

// RequirePage wraps a server-rendered page handler: denials become HTTP
// redirects, allowed requests proceed with the decision passed through.
func (v *SessionValidator) RequirePage(next func(w http.ResponseWriter, r *http.Request, d Decision)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := v.Validate(r.Context(), r, time.Now().UTC())
		if !d.Allowed {
			http.Redirect(w, r, d.Redirect.URL(), http.StatusSeeOther)
			return
		}
		next(w, r, d)
	}
}

// Require is the API-route variant: denials become a 401 error envelope.
func (v *SessionValidator) Require(w http.ResponseWriter, r *http.Request, now time.Time) (Decision, bool) {
	d := v.Validate(r.Context(), r, now)
	if !d.Allowed {
		WriteError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return Decision{}, false
	}
	return d, true
}
