// Package profile owns the per-user profile row: account expiry, last login
// bookkeeping, and the session reference that embeds the device fingerprint.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no profile row exists for a user.
var ErrNotFound = errors.New("profile not found")

// Profile is one row per user. Created at key redemption time (outside this
// service); mutated on every login and every heartbeat tick.
type Profile struct {
	UserID             uuid.UUID
	Email              string
	AccountExpiresAt   *time.Time
	LastLoginAt        *time.Time
	LastLoginSessionID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Expired reports whether the account membership has lapsed at now.
// A missing expiry is treated as expired: rows only gain an expiry through
// key redemption, so its absence means no active membership.
func (p Profile) Expired(now time.Time) bool {
	return p.AccountExpiresAt == nil || p.AccountExpiresAt.Before(now)
}

// SessionRef is the structured record stored in last_login_session_id.
// It replaces the old delimiter-joined composite string; Encode/Decode is the
// single documented codec pair for it.
type SessionRef struct {
	DeviceID     string
	SessionToken string
}

const (
	refVersion   = "v2"
	refSeparator = "|"

	// legacySeparator joined the segments of the old composite format.
	legacySeparator = "-"
	// legacyDeviceMarker prefixes old-format device tokens that span three
	// segments instead of one.
	legacyDeviceMarker = "device"
	legacyDeviceSpan   = 3
)

// Encode serializes the ref as "v2|<deviceID>|<sessionToken>".
// Fields containing the separator are rejected rather than escaped.
func (r SessionRef) Encode() (string, error) {
	if strings.Contains(r.DeviceID, refSeparator) || strings.Contains(r.SessionToken, refSeparator) {
		return "", fmt.Errorf("session ref: field contains %q", refSeparator)
	}
	return refVersion + refSeparator + r.DeviceID + refSeparator + r.SessionToken, nil
}

// DecodeSessionRef parses a stored session reference. It understands the
// current "v2|device|session" form and falls back to the legacy positional
// format for rows written before the codec change.
//
// Legacy format: segments joined by "-" with the device id in the first
// segment, unless the first segment is the "device" marker, in which case the
// device token spans the first three segments.
func DecodeSessionRef(stored string) (SessionRef, bool) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return SessionRef{}, false
	}

	if rest, ok := strings.CutPrefix(stored, refVersion+refSeparator); ok {
		parts := strings.SplitN(rest, refSeparator, 2)
		if len(parts) != 2 || parts[0] == "" {
			return SessionRef{}, false
		}
		return SessionRef{DeviceID: parts[0], SessionToken: parts[1]}, true
	}

	return decodeLegacySessionRef(stored)
}

func decodeLegacySessionRef(stored string) (SessionRef, bool) {
	segs := strings.Split(stored, legacySeparator)
	if len(segs) < 2 {
		return SessionRef{}, false
	}

	if segs[0] == legacyDeviceMarker {
		if len(segs) <= legacyDeviceSpan {
			return SessionRef{}, false
		}
		return SessionRef{
			DeviceID:     strings.Join(segs[:legacyDeviceSpan], legacySeparator),
			SessionToken: strings.Join(segs[legacyDeviceSpan:], legacySeparator),
		}, true
	}

	return SessionRef{
		DeviceID:     segs[0],
		SessionToken: strings.Join(segs[1:], legacySeparator),
	}, true
}
