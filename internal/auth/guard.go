package auth

import "strings"

// SessionState is what the route guard knows about a request's session.
type SessionState int

const (
	Unauthenticated SessionState = iota
	ValidSession
	InvalidSession
)

func (s SessionState) String() string {
	switch s {
	case ValidSession:
		return "valid"
	case InvalidSession:
		return "invalid"
	default:
		return "unauthenticated"
	}
}

// Action is the route guard's decision for a request.
type Action int

const (
	Allow Action = iota
	RedirectToLogin
	RedirectToLanding
)

func (a Action) String() string {
	switch a {
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToLanding:
		return "redirect_landing"
	default:
		return "allow"
	}
}

// RouteRules configures the route guard.
type RouteRules struct {
	Protected   []string
	AuthPages   []string
	LoginPath   string
	LandingPath string
}

func DefaultRouteRules() RouteRules {
	return RouteRules{
		Protected:   []string{"/dashboard", "/transactions"},
		AuthPages:   []string{"/auth/"},
		LoginPath:   "/auth/login",
		LandingPath: "/dashboard",
	}
}

// Decide maps a request path and session state to an action. It is a pure
// function: no I/O, no mutation.
func (r RouteRules) Decide(path string, state SessionState) Action {
	if matchesAny(path, r.Protected) {
		if state == ValidSession {
			return Allow
		}
		return RedirectToLogin
	}
	if matchesAny(path, r.AuthPages) && state == ValidSession {
		return RedirectToLanding
	}
	return Allow
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole path segments, so "/dashboard" covers
// "/dashboard" and "/dashboard/stats" but not "/dashboards".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
