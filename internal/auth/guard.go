package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/users"
)

type contextKey struct{}

var userKey contextKey

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by the Guard, or nil for an
// anonymous request.
func UserFromContext(ctx context.Context) *users.User {
	u, _ := ctx.Value(userKey).(*users.User)
	return u
}

// Guard resolves session tokens to users. Every failure demotes the request
// to anonymous: the guard enriches requests and never blocks them.
type Guard struct {
	users  users.Repository
	secret []byte
	log    logging.Logger
}

func NewGuard(repo users.Repository, secret string, log logging.Logger) *Guard {
	return &Guard{users: repo, secret: []byte(secret), log: log.With("component", "guard")}
}

// Resolve returns the user for token, or nil.
func (g *Guard) Resolve(ctx context.Context, token string) *users.User {
	if token == "" {
		return nil
	}

	userID, err := ParseToken(token, g.secret)
	if err != nil {
		g.log.Debug(ctx, "session token rejected", "err", err)
		return nil
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			g.log.Warn(ctx, "session user lookup failed", "user_id", userID, "err", err)
		}
		return nil
	}
	return user
}

// ResolveRequest reads the session cookie from r and resolves it.
func (g *Guard) ResolveRequest(r *http.Request) *users.User {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	return g.Resolve(r.Context(), cookie.Value)
}

// Middleware attaches the resolved user, if any, to the request context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := g.ResolveRequest(r); user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}
