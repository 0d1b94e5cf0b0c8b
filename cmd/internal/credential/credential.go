// Package credential verifies bearer credentials issued by the external
// credential store.
//
// The store is opaque to this application: it owns signup, password checks,
// and token issuance. What reaches us is an HS256 JWT carrying the user id
// (sub, a UUID), the account email, the session id (sid), and the issuance
// time (iat). We verify the signature locally with the shared signing secret
// and surface the claims as an Identity.
package credential

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrNoCredential is returned when the request carries no bearer credential.
	ErrNoCredential = errors.New("no credential")

	// ErrInvalidCredential is returned when a credential fails verification.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the verified caller identity.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	SessionID string
	IssuedAt  time.Time
}

// Verifier validates bearer credentials against the configured signing secret.
type Verifier struct {
	secret     []byte
	cookieName string
}

// NewVerifier constructs a Verifier. cookieName is the session cookie holding
// the bearer for browser requests; the Authorization header is always honored.
func NewVerifier(secret string, cookieName string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("credential: empty signing secret")
	}
	if cookieName == "" {
		cookieName = "ludo_session"
	}
	return &Verifier{secret: []byte(secret), cookieName: cookieName}, nil
}

type sessionClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Verify parses and verifies a raw bearer token.
func (v *Verifier) Verify(raw string, now time.Time) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrNoCredential
	}

	// iat is not validated as a window here. The credential store runs on its
	// own clock; a few seconds of issuer skew must not invalidate a fresh
	// token. The claim value itself feeds the supersession compare downstream.
	claims := &sessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrInvalidCredential
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidCredential)
	}
	if claims.IssuedAt == nil {
		return Identity{}, fmt.Errorf("%w: missing iat", ErrInvalidCredential)
	}

	return Identity{
		UserID:    userID,
		Email:     strings.ToLower(strings.TrimSpace(claims.Email)),
		SessionID: claims.SessionID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
	}, nil
}

// FromRequest resolves the caller identity from the request's bearer:
// Authorization header first, then the session cookie.
func (v *Verifier) FromRequest(r *http.Request, now time.Time) (Identity, error) {
	raw := bearerFromRequest(r, v.cookieName)
	if raw == "" {
		return Identity{}, ErrNoCredential
	}
	return v.Verify(raw, now)
}

func bearerFromRequest(r *http.Request, cookieName string) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		parts := strings.SplitN(raw, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
