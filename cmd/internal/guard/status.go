package guard

import (
	"net/http"
	"time"
)

type statusResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	Redirect      string `json:"redirect,omitempty"`
}

// HandleStatus is GET /api/auth/status, polled by the membership guard loop.
// It always answers 200 so the client can tell a decision from a network
// failure; a denial carries the redirect target to navigate to.
func (v *SessionValidator) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	d := v.Validate(r.Context(), r, time.Now().UTC())
	if !d.Allowed {
		WriteJSON(w, http.StatusOK, statusResponse{
			Success:  true,
			Redirect: d.Redirect.URL(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse{Success: true, Authenticated: true})
}
