// Package heartbeat serves the keep-alive endpoint that advances a
// profile's last-seen timestamp and feeds the presence tracker.
package heartbeat

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/guard"
	"loveludo/cmd/internal/presence"
	"loveludo/cmd/internal/profile"
)

// DefaultInterval is the advisory cadence handed back to clients. Clients
// additionally debounce sends; see the agent package.
const DefaultInterval = 50 * time.Second

// Handler serves POST /api/heartbeat.
type Handler struct {
	log      *slog.Logger
	verifier *credential.Verifier
	profiles profile.Store
	tracker  presence.Tracker
	interval time.Duration
	maxBody  int64

	beats prometheus.Counter
}

// NewHandler constructs a heartbeat Handler. tracker and beats may be nil.
func NewHandler(log *slog.Logger, verifier *credential.Verifier, profiles profile.Store, tracker presence.Tracker, beats prometheus.Counter) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		verifier: verifier,
		profiles: profiles,
		tracker:  tracker,
		interval: DefaultInterval,
		maxBody:  16 << 10,
		beats:    beats,
	}
}

type heartbeatRequest struct {
	Timestamp       int64  `json:"timestamp"`
	Page            string `json:"page"`
	UserAgentSample string `json:"userAgentSample"`
}

type heartbeatResponse struct {
	Success       bool  `json:"success"`
	Timestamp     int64 `json:"timestamp"`
	NextHeartbeat int64 `json:"nextHeartbeat"`
}

// ServeHTTP records a heartbeat for the authenticated user. Timestamps in
// the body are informational only; the server clock is authoritative.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := time.Now().UTC()

	id, err := h.verifier.FromRequest(r, now)
	if err != nil {
		guard.WriteError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return
	}

	var req heartbeatRequest
	if r.ContentLength != 0 {
		if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
			guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	err = h.profiles.TouchHeartbeat(r.Context(), now, id.UserID)
	if errors.Is(err, profile.ErrNotFound) {
		guard.WriteError(w, http.StatusNotFound, "profile_missing", "no profile for user")
		return
	}
	if err != nil {
		h.log.Error("heartbeat.touch.fail", "err", err, "user_id", id.UserID)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if h.tracker != nil {
		if err := h.tracker.Touch(r.Context(), id.UserID.String(), now); err != nil {
			// Presence is best effort; the profile row already carries the
			// authoritative last-seen time.
			h.log.Warn("heartbeat.presence.fail", "err", err, "user_id", id.UserID)
		}
	}
	if h.beats != nil {
		h.beats.Inc()
	}

	h.log.Debug("heartbeat.ok", "user_id", id.UserID, "page", req.Page)
	guard.WriteJSON(w, http.StatusOK, heartbeatResponse{
		Success:       true,
		Timestamp:     now.UnixMilli(),
		NextHeartbeat: now.Add(h.interval).UnixMilli(),
	})
}
