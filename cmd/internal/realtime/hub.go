package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Hub is the per-user registry of connected clients. A user may hold more
// than one connection (tabs); kicks address all of them except the one that
// triggered the new login.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		byUser: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to its user's set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[c.UserID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byUser, c.UserID)
	}
}

// Clients returns the current connection count for a user.
func (h *Hub) Clients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// KickUser pushes a session.revoked envelope to every client of userID whose
// session differs from exceptSessionID, then closes them. Delivery is best
// effort: a full send queue does not block the caller.
func (h *Hub) KickUser(userID, reason string, exceptSessionID string) {
	payload, _ := json.Marshal(SessionRevokedPayload{Reason: reason})
	env := newEnvelope(TypeSessionRevoked, payload, time.Now().UTC())

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		if exceptSessionID != "" && c.SessionID == exceptSessionID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.Send <- env:
		default:
			h.log.Info("realtime.kick.backpressure", "user_id", userID, "session_id", c.SessionID)
		}
		c.Close()
	}
	if len(targets) > 0 {
		h.log.Info("realtime.kick", "user_id", userID, "reason", reason, "clients", len(targets))
	}
}
