package auth

import (
	"context"
	"net/http"
)

// CookieName is the cookie that carries the session token.
const CookieName = "session"

// contextKey is an unexported type used for context keys in this package.
//
// A package-private key type means no other package can read or shadow the
// session stored in the context.
type contextKey string

const sessionKey contextKey = "session"

// OptionalAuth puts the viewer's Session in the request context when a valid
// session cookie is present, and lets the request through either way.
//
// Every page uses it: anonymous visitors can read profiles, and pages that
// show "edit" links or the viewer's name check SessionFromContext.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func OptionalAuth(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := readSession(r, sessions); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth redirects anonymous requests to /login. It relies on
// OptionalAuth having run earlier in the chain, or validates the cookie
// itself when it hasn't.
func RequireAuth(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := readSession(r, sessions)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the viewer's session, or (nil, false) for an
// anonymous request.
//
// Usage in handlers:
//
//	sess, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // anonymous visitor
//	}
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// SetCookie writes the session cookie. HttpOnly keeps the token away from
// page scripts.
func SetCookie(w http.ResponseWriter, token string, sessions *SessionService, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func readSession(r *http.Request, sessions *SessionService) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return sessions.Validate(cookie.Value)
}
