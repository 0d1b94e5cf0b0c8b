package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sign mints a bearer token the way the credential store does. Used by tests;
// the server itself never issues credentials.
func Sign(secret string, userID uuid.UUID, email, sessionID string, issuedAt time.Time) (string, error) {
	claims := sessionClaims{
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
