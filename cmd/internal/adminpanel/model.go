// Package adminpanel serves the administrative JSON APIs: access keys,
// announcements, feedback moderation and AI usage limits, plus the admin
// login/check-auth endpoints that manage the admin cookie.
package adminpanel

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("adminpanel: not found")

// AccessKey is a redeemable subscription key. Redemption itself happens in
// the client app; the admin surface only mints and lists keys.
type AccessKey struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	DurationDays int        `json:"durationDays"`
	Note         string     `json:"note,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	RedeemedBy   *uuid.UUID `json:"redeemedBy,omitempty"`
	RedeemedAt   *time.Time `json:"redeemedAt,omitempty"`
}

// Announcement is a banner shown to all signed-in users. At most one is
// "current": the most recently created active one.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Active    bool      `json:"active"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feedback is a user-submitted report.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Page      string    `json:"page,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AILimit caps a user's daily AI requests.
type AILimit struct {
	UserID     uuid.UUID `json:"userId"`
	DailyLimit int       `json:"dailyLimit"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
