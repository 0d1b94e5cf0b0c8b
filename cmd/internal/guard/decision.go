package guard

import (
	"net/url"

	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/profile"
)

// Redirect targets used by guard decisions.
const (
	TargetLogin             = "/login"
	TargetAccountExpired    = "/account-expired"
	TargetSessionExpired    = "/session-expired"
	TargetAdminUnauthorized = "/admin/unauthorized"
)

// Redirect is a navigation instruction carried by a denying Decision.
type Redirect struct {
	Target string
	Params url.Values
}

// URL renders the redirect as a path with encoded query parameters.
func (r Redirect) URL() string {
	if len(r.Params) == 0 {
		return r.Target
	}
	return r.Target + "?" + r.Params.Encode()
}

// Decision is the outcome of a guard check. Guards never surface errors to
// the rendering layer; every failure resolves to a redirect.
type Decision struct {
	Allowed  bool
	Identity credential.Identity
	Profile  profile.Profile
	Redirect Redirect
}

func allow(id credential.Identity, p profile.Profile) Decision {
	return Decision{Allowed: true, Identity: id, Profile: p}
}

func redirectTo(target string, params url.Values) Decision {
	return Decision{Redirect: Redirect{Target: target, Params: params}}
}
