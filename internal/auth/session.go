package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"finanzas/internal/core"
)

// CookieName is the cookie that carries the session token for page requests.
const CookieName = "session"

// UserFinder loads users by ID.
type UserFinder interface {
	UserByID(ctx context.Context, id int64) (core.User, error)
}

// Authenticator turns a request token into a user.
type Authenticator struct {
	tokens *Tokens
	users  UserFinder
}

// NewAuthenticator returns an authenticator backed by tokens and users.
func NewAuthenticator(tokens *Tokens, users UserFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Tokens returns the token issuer.
func (a *Authenticator) Tokens() *Tokens {
	return a.tokens
}

// Authenticate verifies token and loads its user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrUnauthenticated
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return core.User{}, err
	}
	u, err := a.users.UserByID(ctx, claims.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware attaches the authenticated user to the request context when the
// request carries a valid token. Requests without one pass through
// anonymously; handlers decide whether that is acceptable.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := a.Authenticate(r.Context(), token)
		if err != nil {
			r = r.WithContext(withAuthError(r.Context(), err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// SessionCookie builds the cookie holding a session token.
func SessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type userKey struct{}
type authErrKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userKey{}, &u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *core.User {
	u, _ := ctx.Value(userKey{}).(*core.User)
	return u
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrKey{}, err)
}

// AuthError returns why a presented token was rejected, or nil when the
// request carried none.
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(authErrKey{}).(error)
	return err
}
