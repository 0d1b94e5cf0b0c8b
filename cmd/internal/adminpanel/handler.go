package adminpanel

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/guard"
	"loveludo/cmd/internal/presence"
	"loveludo/cmd/internal/profile"
)

// MinFeedbackLen is the shortest accepted feedback message.
const MinFeedbackLen = 10

// legacyAdmin is recorded as the author when the caller authenticated with
// the admin cookie and carries no email identity.
const legacyAdmin = "legacy-admin"

// Handler wires the admin panel routes. All /admin/api routes sit behind the
// admin guard; /api/announcements/current and /api/feedback are user-facing.
type Handler struct {
	log      *slog.Logger
	admin    *guard.AdminGuard
	verifier *credential.Verifier
	store    Store
	profiles profile.Store
	presence presence.Tracker
	maxBody  int64
}

// NewHandler constructs the admin panel handler. presence may be nil.
func NewHandler(log *slog.Logger, admin *guard.AdminGuard, verifier *credential.Verifier, store Store, profiles profile.Store, tracker presence.Tracker) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		admin:    admin,
		verifier: verifier,
		store:    store,
		profiles: profiles,
		presence: tracker,
		maxBody:  64 << 10,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/api/check-auth", h.handleCheckAuth)
	mux.HandleFunc("/admin/api/login", h.handleLogin)
	mux.HandleFunc("/admin/api/settings/invalidate", h.admin.Require(h.handleSettingsInvalidate))
	mux.HandleFunc("/admin/api/keys", h.admin.Require(h.handleKeys))
	mux.HandleFunc("/admin/api/keys/extend", h.admin.Require(h.handleKeysExtend))
	mux.HandleFunc("/admin/api/announcements", h.admin.Require(h.handleAnnouncements))
	mux.HandleFunc("/admin/api/feedback", h.admin.Require(h.handleFeedbackList))
	mux.HandleFunc("/admin/api/ai-limits", h.admin.Require(h.handleAILimits))
	mux.HandleFunc("/admin/api/online", h.admin.Require(h.handleOnline))
	mux.HandleFunc("/api/announcements/current", h.handleAnnouncementCurrent)
	mux.HandleFunc("/api/feedback", h.handleFeedbackSubmit)
}

// actor resolves the audit author for a write: the allowlisted admin's email,
// or a fixed marker for the cookie path.
func (h *Handler) actor(r *http.Request) string {
	id, admin, _ := h.admin.Check(r, time.Now().UTC())
	if admin && id.Email != "" {
		return id.Email
	}
	return legacyAdmin
}

type checkAuthResponse struct {
	Success bool   `json:"success"`
	Admin   bool   `json:"admin"`
	Email   string `json:"email,omitempty"`
}

// handleCheckAuth is the admin heartbeat: GET, 200 refreshes the admin
// cookie, 401 clears it.
func (h *Handler) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, admin, _ := h.admin.Check(r, time.Now().UTC())
	if !admin {
		h.admin.ClearAdminCookie(w)
		guard.WriteError(w, http.StatusUnauthorized, "not_admin", "admin access required")
		return
	}
	if err := h.admin.SetAdminCookie(w); err != nil {
		// Allowlisted admins stay in even when the legacy key is unset.
		h.log.Warn("adminpanel.checkauth.cookie", "err", err)
	}
	guard.WriteJSON(w, http.StatusOK, checkAuthResponse{Success: true, Admin: true, Email: id.Email})
}

type loginRequest struct {
	Key string `json:"key"`
}

// handleLogin verifies a submitted admin key and sets the admin cookie.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ok, err := h.admin.VerifyAdminKey(req.Key)
	if errors.Is(err, guard.ErrAdminKeyMisconfigured) {
		h.log.Error("adminpanel.login.misconfigured")
		guard.WriteError(w, http.StatusInternalServerError, "admin_misconfigured", "admin access is not configured")
		return
	}
	if err != nil {
		h.log.Error("adminpanel.login.verify.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !ok {
		guard.WriteError(w, http.StatusUnauthorized, "invalid_key", "incorrect admin key")
		return
	}
	if err := h.admin.SetAdminCookie(w); err != nil {
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	guard.WriteJSON(w, http.StatusOK, checkAuthResponse{Success: true, Admin: true})
}

// handleSettingsInvalidate drops the cached admin settings so the next check
// re-reads them.
func (h *Handler) handleSettingsInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.admin.Settings().Invalidate()
	h.log.Info("adminpanel.settings.invalidated")
	guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type createKeyRequest struct {
	DurationDays int    `json:"durationDays"`
	Note         string `json:"note"`
}

func (h *Handler) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		keys, err := h.store.ListKeys(r.Context())
		if err != nil {
			h.log.Error("adminpanel.keys.list.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "keys": keys})
	case http.MethodPost:
		var req createKeyRequest
		if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
			guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		if req.DurationDays <= 0 {
			guard.WriteError(w, http.StatusBadRequest, "invalid_duration", "durationDays must be positive")
			return
		}
		now := time.Now().UTC()
		key := AccessKey{
			ID:           ulid.Make().String(),
			Code:         ulid.Make().String(),
			DurationDays: req.DurationDays,
			Note:         strings.TrimSpace(req.Note),
			CreatedBy:    h.actor(r),
			CreatedAt:    now,
		}
		if err := h.store.CreateKey(r.Context(), key); err != nil {
			h.log.Error("adminpanel.keys.create.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		h.log.Info("adminpanel.keys.created", "key_id", key.ID, "by", key.CreatedBy)
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type extendKeyRequest struct {
	Email string `json:"email"`
	Days  int    `json:"days"`
}

// handleKeysExtend pushes a profile's account expiry forward. Extension is
// from the current expiry when it is still in the future, otherwise from now.
func (h *Handler) handleKeysExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req extendKeyRequest
	if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Days <= 0 {
		guard.WriteError(w, http.StatusBadRequest, "invalid_days", "days must be positive")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		guard.WriteError(w, http.StatusBadRequest, "invalid_email", "email is required")
		return
	}

	now := time.Now().UTC()
	p, err := h.profiles.GetByEmail(r.Context(), email)
	if errors.Is(err, profile.ErrNotFound) {
		guard.WriteError(w, http.StatusNotFound, "profile_missing", "no profile for email")
		return
	}
	if err != nil {
		h.log.Error("adminpanel.extend.lookup.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	base := now
	if p.AccountExpiresAt != nil && p.AccountExpiresAt.After(now) {
		base = *p.AccountExpiresAt
	}
	until := base.AddDate(0, 0, req.Days)

	if err := h.profiles.SetAccountExpiry(r.Context(), now, p.UserID, until); err != nil {
		h.log.Error("adminpanel.extend.fail", "err", err, "user_id", p.UserID)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.log.Info("adminpanel.extend.ok", "user_id", p.UserID, "until", until, "by", h.actor(r))
	guard.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"email":            p.Email,
		"accountExpiresAt": until,
	})
}

type createAnnouncementRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Active bool   `json:"active"`
}

func (h *Handler) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.store.ListAnnouncements(r.Context())
		if err != nil {
			h.log.Error("adminpanel.announcements.list.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "announcements": list})
	case http.MethodPost:
		var req createAnnouncementRequest
		if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
			guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		title := strings.TrimSpace(req.Title)
		body := strings.TrimSpace(req.Body)
		if title == "" || body == "" {
			guard.WriteError(w, http.StatusBadRequest, "invalid_announcement", "title and body are required")
			return
		}
		a := Announcement{
			ID:        ulid.Make().String(),
			Title:     title,
			Body:      body,
			Active:    req.Active,
			CreatedBy: h.actor(r),
			CreatedAt: time.Now().UTC(),
		}
		if err := h.store.CreateAnnouncement(r.Context(), a); err != nil {
			h.log.Error("adminpanel.announcements.create.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "announcement": a})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleAnnouncementCurrent is the user-facing banner fetch. Requires a valid
// session but not admin.
func (h *Handler) handleAnnouncementCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.verifier.FromRequest(r, time.Now().UTC()); err != nil {
		guard.WriteError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return
	}
	a, err := h.store.CurrentAnnouncement(r.Context())
	if errors.Is(err, ErrNotFound) {
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "announcement": nil})
		return
	}
	if err != nil {
		h.log.Error("adminpanel.announcements.current.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "announcement": a})
}

type feedbackRequest struct {
	Message string `json:"message"`
	Page    string `json:"page"`
}

// handleFeedbackSubmit accepts a signed-in user's feedback.
func (h *Handler) handleFeedbackSubmit(w http.ResponseWriter, r *http.Request) {
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
	var req feedbackRequest
	if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	msg := strings.TrimSpace(req.Message)
	if len(msg) < MinFeedbackLen {
		guard.WriteError(w, http.StatusBadRequest, "invalid_message", "Message must be at least 10 characters.")
		return
	}
	f := Feedback{
		ID:        ulid.Make().String(),
		UserID:    id.UserID,
		Email:     id.Email,
		Message:   msg,
		Page:      strings.TrimSpace(req.Page),
		CreatedAt: now,
	}
	if err := h.store.SubmitFeedback(r.Context(), f); err != nil {
		h.log.Error("adminpanel.feedback.submit.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "id": f.ID})
}

func (h *Handler) handleFeedbackList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.store.ListFeedback(r.Context())
	if err != nil {
		h.log.Error("adminpanel.feedback.list.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "feedback": list})
}

type setAILimitRequest struct {
	UserID     string `json:"userId"`
	DailyLimit int    `json:"dailyLimit"`
}

func (h *Handler) handleAILimits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.store.ListAILimits(r.Context())
		if err != nil {
			h.log.Error("adminpanel.ailimits.list.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "limits": list})
	case http.MethodPost:
		var req setAILimitRequest
		if err := guard.DecodeJSON(w, r, h.maxBody, &req); err != nil {
			guard.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
		if err != nil {
			guard.WriteError(w, http.StatusBadRequest, "invalid_user", "userId must be a UUID")
			return
		}
		if req.DailyLimit < 0 {
			guard.WriteError(w, http.StatusBadRequest, "invalid_limit", "dailyLimit must not be negative")
			return
		}
		l := AILimit{UserID: userID, DailyLimit: req.DailyLimit, UpdatedAt: time.Now().UTC()}
		if err := h.store.SetAILimit(r.Context(), l); err != nil {
			h.log.Error("adminpanel.ailimits.set.fail", "err", err)
			guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "limit": l})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleOnline lists users the presence tracker currently considers online.
func (h *Handler) handleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.presence == nil {
		guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "online": []string{}})
		return
	}
	online, err := h.presence.Online(r.Context())
	if err != nil {
		h.log.Error("adminpanel.online.fail", "err", err)
		guard.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if online == nil {
		online = []string{}
	}
	guard.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "online": online})
}
