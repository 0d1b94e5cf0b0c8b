package guard

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/profile"
)

// Device check reasons, part of the wire contract.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonNewUser          = "new_user_or_no_device_record"
	ReasonDeviceMatched    = "device_matched"
	ReasonDeviceMismatch   = "device_mismatch"
)

// UnknownDevice is assumed when the fingerprint cookie is absent.
const UnknownDevice = "unknown"

// Kicker pushes forced-logout signals to connected realtime clients.
// Implementations must be safe for concurrent use.
type Kicker interface {
	KickUser(userID, reason string, exceptSessionID string)
}

// NopKicker is used when the realtime gateway is disabled.
type NopKicker struct{}

func (NopKicker) KickUser(string, string, string) {}

// DeviceGuard serves the device-fingerprint check and the post-login device
// registration write.
type DeviceGuard struct {
	log        *slog.Logger
	verifier   *credential.Verifier
	profiles   profile.Store
	kicker     Kicker
	cookieName string
	maxBody    int64
}

// NewDeviceGuard constructs a DeviceGuard. cookieName is the fingerprint
// cookie; kicker may be nil.
func NewDeviceGuard(log *slog.Logger, verifier *credential.Verifier, profiles profile.Store, kicker Kicker, cookieName string) *DeviceGuard {
	if log == nil {
		log = slog.Default()
	}
	if kicker == nil {
		kicker = NopKicker{}
	}
	if cookieName == "" {
		cookieName = "ludo_device_id"
	}
	return &DeviceGuard{
		log:        log,
		verifier:   verifier,
		profiles:   profiles,
		kicker:     kicker,
		cookieName: cookieName,
		maxBody:    64 << 10,
	}
}

type deviceCheckResponse struct {
	Success       bool   `json:"success"`
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason"`
	DeviceID      string `json:"deviceId,omitempty"`
	StoredDevice  string `json:"storedDevice,omitempty"`
	CurrentDevice string `json:"currentDevice,omitempty"`
	Message       string `json:"message,omitempty"`
}

// DeviceFromRequest reads the client fingerprint cookie, defaulting to
// UnknownDevice when absent or blank.
func (g *DeviceGuard) DeviceFromRequest(r *http.Request) string {
	c, err := r.Cookie(g.cookieName)
	if err != nil {
		return UnknownDevice
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return UnknownDevice
	}
	return v
}

// HandleCheck is POST /api/device/check. Read-only: the client redirects on
// denial, the server records nothing here.
func (g *DeviceGuard) HandleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := time.Now().UTC()

	id, err := g.verifier.FromRequest(r, now)
	if err != nil {
		WriteJSON(w, http.StatusUnauthorized, deviceCheckResponse{
			Reason: ReasonNotAuthenticated,
		})
		return
	}

	current := g.DeviceFromRequest(r)

	p, err := g.profiles.Get(r.Context(), id.UserID)
	if errors.Is(err, profile.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "profile_missing", "no profile for user")
		return
	}
	if err != nil {
		g.log.Error("guard.device.profile.fail", "err", err, "user_id", id.UserID)
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	stored, ok := profile.DecodeSessionRef(p.LastLoginSessionID)
	if !ok || stored.DeviceID == "" {
		WriteJSON(w, http.StatusOK, deviceCheckResponse{
			Success:  true,
			Allowed:  true,
			Reason:   ReasonNewUser,
			DeviceID: current,
		})
		return
	}

	if stored.DeviceID == current {
		WriteJSON(w, http.StatusOK, deviceCheckResponse{
			Success:  true,
			Allowed:  true,
			Reason:   ReasonDeviceMatched,
			DeviceID: current,
		})
		return
	}

	WriteJSON(w, http.StatusForbidden, deviceCheckResponse{
		Success:       true,
		Allowed:       false,
		Reason:        ReasonDeviceMismatch,
		StoredDevice:  stored.DeviceID,
		CurrentDevice: current,
		Message:       "This account was signed in on another device.",
	})
}

type deviceRegisterRequest struct {
	DeviceID string `json:"deviceId"`
}

type deviceRegisterResponse struct {
	Success  bool   `json:"success"`
	DeviceID string `json:"deviceId"`
}

// HandleRegister is POST /api/device/register, called by the client right
// after a fresh login. It records the fingerprint + session ref on the
// profile (last writer wins) and kicks the user's other realtime clients.
func (g *DeviceGuard) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := time.Now().UTC()

	id, err := g.verifier.FromRequest(r, now)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, ReasonNotAuthenticated, "authentication required")
		return
	}
	if id.SessionID == "" {
		WriteError(w, http.StatusUnauthorized, ReasonNotAuthenticated, "credential has no session")
		return
	}

	var req deviceRegisterRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, g.maxBody, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = g.DeviceFromRequest(r)
	}

	ref := profile.SessionRef{DeviceID: deviceID, SessionToken: id.SessionID}
	err = g.profiles.RecordLogin(r.Context(), now, id.UserID, ref)
	if errors.Is(err, profile.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "profile_missing", "no profile for user")
		return
	}
	if err != nil {
		g.log.Error("guard.device.register.fail", "err", err, "user_id", id.UserID)
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Best-effort push: the superseded device's next poll would catch this
	// anyway; the kick just closes the window.
	g.kicker.KickUser(id.UserID.String(), "new_login", id.SessionID)

	g.log.Info("guard.device.registered", "user_id", id.UserID, "device_id", deviceID)
	WriteJSON(w, http.StatusOK, deviceRegisterResponse{Success: true, DeviceID: deviceID})
}
