package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/models"
)

// Session is the resolved caller of a request
type Session struct {
	Actor      models.Actor
	Credential bookingapi.Credential
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or a guest session
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(contextKey{}).(Session); ok {
		return s
	}
	return Session{Actor: models.Guest()}
}

// Middleware resolves the caller once per request and stores the session in the request context.
// If the booking API cannot be reached the caller continues as a guest.
// Health checks are served without a session.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/health/") {
			next.ServeHTTP(w, req)
			return
		}

		cred := CredentialFromRequest(req)

		actor, err := r.Resolve(req.Context(), cred)
		if err != nil {
			r.log.WithError(err).Warn("Could not resolve caller, continuing as guest")
		}

		ctx := WithSession(req.Context(), Session{Actor: actor, Credential: cred})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// RequireRole rejects requests whose actor does not have role
func RequireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		if s.Actor.IsGuest() {
			http.Error(w, "Sign in required", http.StatusUnauthorized)
			return
		}
		if s.Actor.Role != role {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
