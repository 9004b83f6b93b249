// Package session turns the caller's credential into the Actor every board
// operation is performed on behalf of.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/models"
	"github.com/sirupsen/logrus"
)

// TokenCookie is the cookie the browser keeps the booking API token in
const TokenCookie = "token"

// ProfileTTL is how long a resolved actor is reused for the same credential
const ProfileTTL = 30 * time.Second

// maxCachedProfiles bounds the cache; expired entries are pruned when it is reached
const maxCachedProfiles = 4096

// ProfileFetcher looks up the user owning a credential
type ProfileFetcher interface {
	Profile(ctx context.Context, cred bookingapi.Credential) (bookingapi.Profile, error)
}

// Resolver resolves credentials to actors
type Resolver struct {
	profiles ProfileFetcher
	log      logrus.FieldLogger
	now      func() time.Time
	parser   *jwt.Parser

	mu     sync.Mutex
	cached map[bookingapi.Credential]cachedActor
}

type cachedActor struct {
	actor   models.Actor
	expires time.Time
}

// NewResolver creates a resolver that asks profiles who owns a credential
func NewResolver(profiles ProfileFetcher, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		profiles: profiles,
		log:      log,
		now:      time.Now,
		parser:   jwt.NewParser(),
		cached:   make(map[bookingapi.Credential]cachedActor),
	}
}

// Resolve returns the actor for cred. Empty, expired and rejected credentials resolve to a guest.
// Answers from the booking API are reused for ProfileTTL; failures are not.
func (r *Resolver) Resolve(ctx context.Context, cred bookingapi.Credential) (models.Actor, error) {
	if cred == bookingapi.Anonymous || cred == "undefined" {
		return models.Guest(), nil
	}

	if r.expired(string(cred)) {
		r.log.Debug("Credential expired, treating caller as guest")
		return models.Guest(), nil
	}

	if actor, ok := r.lookup(cred); ok {
		return actor, nil
	}

	profile, err := r.profiles.Profile(ctx, cred)
	if err != nil {
		if errors.Is(err, bookingapi.ErrUnauthorized) {
			r.store(cred, models.Guest())
			return models.Guest(), nil
		}
		return models.Guest(), fmt.Errorf("failed to resolve actor: %w", err)
	}

	actor := profile.Actor()
	r.store(cred, actor)
	return actor, nil
}

func (r *Resolver) lookup(cred bookingapi.Credential) (models.Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cached[cred]
	if !ok {
		return models.Actor{}, false
	}
	if !r.now().Before(entry.expires) {
		delete(r.cached, cred)
		return models.Actor{}, false
	}
	return entry.actor, true
}

func (r *Resolver) store(cred bookingapi.Credential, actor models.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.cached) >= maxCachedProfiles {
		for key, entry := range r.cached {
			if !now.Before(entry.expires) {
				delete(r.cached, key)
			}
		}
		if len(r.cached) >= maxCachedProfiles {
			clear(r.cached)
		}
	}
	r.cached[cred] = cachedActor{actor: actor, expires: now.Add(ProfileTTL)}
}

// expired inspects the exp claim without verifying the signature; the booking
// API remains the verifier. Tokens that are not JWTs are never considered expired.
func (r *Resolver) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !r.now().Before(exp.Time)
}

// CredentialFromRequest extracts the bearer token from the Authorization header or the token cookie
func CredentialFromRequest(r *http.Request) bookingapi.Credential {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
			return bookingapi.Credential(strings.TrimSpace(authHeader[7:]))
		}
		return bookingapi.Anonymous
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return bookingapi.Credential(cookie.Value)
	}
	return bookingapi.Anonymous
}
