package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/log"
)

// CookieName carries the session token.
const CookieName = "auth-token"

type sessionKey struct{}

// Guard resolves the session cookie once per request and enforces the route
// rules before any handler runs.
type Guard struct {
	rules        auth.RouteRules
	tokens       *auth.Tokens
	secureCookie bool
	logger       *log.Logger
}

func NewGuard(rules auth.RouteRules, tokens *auth.Tokens, secureCookie bool, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Discard()
	}
	return &Guard{
		rules:        rules,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger.WithComponent(log.ComponentGuard),
	}
}

// Middleware validates the session cookie, stores a valid session in the
// request context and applies the route guard decision. Browser navigations
// are redirected; API calls to protected paths get a 401.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state, session := g.resolve(r)
		if state == auth.InvalidSession {
			g.clearCookie(w)
		}

		action := g.rules.Decide(r.URL.Path, state)
		switch action {
		case auth.RedirectToLogin:
			log.FromContext(ctx).WithComponent(log.ComponentGuard).InfoContext(ctx, "Access denied",
				log.FieldGuardAction, action.String(),
				log.FieldPath, r.URL.Path,
				"session", state.String())
			if isNavigation(r) {
				http.Redirect(w, r, g.rules.LoginPath, http.StatusFound)
				return
			}
			writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
			return
		case auth.RedirectToLanding:
			// /auth/me and /auth/logout share the prefix but are API
			// endpoints; only the login page bounces to the landing page.
			if isNavigation(r) && r.URL.Path == g.rules.LoginPath {
				http.Redirect(w, r, g.rules.LandingPath, http.StatusFound)
				return
			}
		}

		if state == auth.ValidSession {
			ctx = context.WithValue(ctx, sessionKey{}, session)
			ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, session.UserID))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) resolve(r *http.Request) (auth.SessionState, auth.Session) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return auth.Unauthenticated, auth.Session{}
	}
	session, err := g.tokens.Validate(cookie.Value)
	if err != nil {
		ctx := r.Context()
		log.FromContext(ctx).WithComponent(log.ComponentGuard).InfoContext(ctx, "Session token rejected",
			log.FieldTokenError, auth.TokenErrorKind(err),
			log.FieldPath, r.URL.Path)
		return auth.InvalidSession, auth.Session{}
	}
	return auth.ValidSession, session
}

// setCookie stores token in the session cookie until expiresAt.
func (g *Guard) setCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(auth.TokenTTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g *Guard) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// SessionFromContext returns the session the guard validated for this
// request, if any.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(auth.Session)
	return s, ok
}

// RequireSession wraps a handler that needs a user. Requests without a
// validated session get a 401 before h runs.
func RequireSession(h func(http.ResponseWriter, *http.Request, auth.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		h(w, r, session)
	}
}

// isNavigation reports whether r looks like a browser page load rather than
// an API call.
func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
