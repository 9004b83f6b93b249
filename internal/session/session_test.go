package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProfileFetcher struct {
	mock.Mock
}

func (m *MockProfileFetcher) Profile(ctx context.Context, cred bookingapi.Credential) (bookingapi.Profile, error) {
	args := m.Called(cred)
	return args.Get(0).(bookingapi.Profile), args.Error(1)
}

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "u1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return s
}

func newTestResolver(profiles ProfileFetcher) *Resolver {
	r := NewResolver(profiles, logger.Discard())
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymous", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		r := newTestResolver(profiles)

		for _, cred := range []bookingapi.Credential{bookingapi.Anonymous, "undefined"} {
			actor, err := r.Resolve(ctx, cred)
			require.NoError(t, err)
			assert.Equal(t, models.Guest(), actor)
		}
		profiles.AssertNotCalled(t, "Profile", mock.Anything)
	})

	t.Run("ExpiredJWTSkipsRoundTrip", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		r := newTestResolver(profiles)

		actor, err := r.Resolve(ctx, bookingapi.Credential(signedToken(t, fixedNow.Add(-time.Minute))))
		require.NoError(t, err)
		assert.Equal(t, models.Guest(), actor)
		profiles.AssertNotCalled(t, "Profile", mock.Anything)
	})

	t.Run("ValidJWTAsksProfile", func(t *testing.T) {
		token := bookingapi.Credential(signedToken(t, fixedNow.Add(time.Hour)))
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", token).Return(bookingapi.Profile{ID: "u1", Role: "user", FullName: "Somchai"}, nil)
		r := newTestResolver(profiles)

		actor, err := r.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.Actor{Role: models.RoleUser, ID: "u1", Name: "Somchai"}, actor)
		profiles.AssertExpectations(t)
	})

	t.Run("OpaqueTokenAsksProfile", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", bookingapi.Credential("opaque")).Return(bookingapi.Profile{ID: "a1", Role: "admin"}, nil)
		r := newTestResolver(profiles)

		actor, err := r.Resolve(ctx, "opaque")
		require.NoError(t, err)
		assert.True(t, actor.IsAdmin())
	})

	t.Run("RejectedTokenIsGuest", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", mock.Anything).Return(bookingapi.Profile{}, &bookingapi.APIError{StatusCode: http.StatusUnauthorized})
		r := newTestResolver(profiles)

		actor, err := r.Resolve(ctx, "revoked")
		require.NoError(t, err)
		assert.Equal(t, models.Guest(), actor)
	})

	t.Run("UnreachableAPIIsAnError", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", mock.Anything).Return(bookingapi.Profile{}, errors.New("connection refused"))
		r := newTestResolver(profiles)

		actor, err := r.Resolve(ctx, "token")
		assert.Error(t, err)
		assert.Equal(t, models.Guest(), actor)
	})
}

func TestResolveReusesProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("WithinTTL", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", bookingapi.Credential("user-token")).Return(bookingapi.Profile{ID: "u1", Role: "user"}, nil)

		clock := fixedNow
		r := NewResolver(profiles, logger.Discard())
		r.now = func() time.Time { return clock }

		for range 3 {
			actor, err := r.Resolve(ctx, "user-token")
			require.NoError(t, err)
			assert.Equal(t, "u1", actor.ID)
		}
		profiles.AssertNumberOfCalls(t, "Profile", 1)

		clock = clock.Add(ProfileTTL)
		_, err := r.Resolve(ctx, "user-token")
		require.NoError(t, err)
		profiles.AssertNumberOfCalls(t, "Profile", 2)
	})

	t.Run("RejectedTokensAreRemembered", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", mock.Anything).Return(bookingapi.Profile{}, &bookingapi.APIError{StatusCode: http.StatusUnauthorized})
		r := newTestResolver(profiles)

		for range 2 {
			actor, err := r.Resolve(ctx, "revoked")
			require.NoError(t, err)
			assert.True(t, actor.IsGuest())
		}
		profiles.AssertNumberOfCalls(t, "Profile", 1)
	})

	t.Run("FailuresAreRetried", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", mock.Anything).Return(bookingapi.Profile{}, errors.New("connection refused")).Once()
		profiles.On("Profile", mock.Anything).Return(bookingapi.Profile{ID: "u1", Role: "user"}, nil).Once()
		r := newTestResolver(profiles)

		_, err := r.Resolve(ctx, "token")
		assert.Error(t, err)

		actor, err := r.Resolve(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "u1", actor.ID)
		profiles.AssertExpectations(t)
	})

	t.Run("TokensAreCachedSeparately", func(t *testing.T) {
		profiles := new(MockProfileFetcher)
		profiles.On("Profile", bookingapi.Credential("user-token")).Return(bookingapi.Profile{ID: "u1", Role: "user"}, nil)
		profiles.On("Profile", bookingapi.Credential("admin-token")).Return(bookingapi.Profile{ID: "a1", Role: "admin"}, nil)
		r := newTestResolver(profiles)

		user, err := r.Resolve(ctx, "user-token")
		require.NoError(t, err)
		admin, err := r.Resolve(ctx, "admin-token")
		require.NoError(t, err)

		assert.False(t, user.IsAdmin())
		assert.True(t, admin.IsAdmin())
	})
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected bookingapi.Credential
	}{
		{
			name:     "bearer header",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") },
			expected: "abc",
		},
		{
			name:     "lowercase bearer",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") },
			expected: "abc",
		},
		{
			name:     "basic auth is ignored",
			setup:    func(r *http.Request) { r.SetBasicAuth("user", "pass") },
			expected: bookingapi.Anonymous,
		},
		{
			name:     "cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "from-cookie"}) },
			expected: "from-cookie",
		},
		{
			name: "header wins over cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer from-header")
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "from-cookie"})
			},
			expected: "from-header",
		},
		{
			name:     "nothing",
			setup:    func(r *http.Request) {},
			expected: bookingapi.Anonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			assert.Equal(t, tt.expected, CredentialFromRequest(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	profiles := new(MockProfileFetcher)
	profiles.On("Profile", bookingapi.Credential("user-token")).Return(bookingapi.Profile{ID: "u1", Role: "user"}, nil)
	profiles.On("Profile", bookingapi.Credential("broken")).Return(bookingapi.Profile{}, errors.New("timeout"))

	log, hook := test.NewNullLogger()
	r := NewResolver(profiles, log)

	var got Session
	handler := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = FromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, Session{Actor: models.Actor{Role: models.RoleUser, ID: "u1"}, Credential: "user-token"}, got)
	assert.Empty(t, hook.AllEntries())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, got.Actor.IsGuest())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Could not resolve caller, continuing as guest", hook.LastEntry().Message)
}

func TestMiddlewareSkipsHealthChecks(t *testing.T) {
	profiles := new(MockProfileFetcher)
	r := NewResolver(profiles, logger.Discard())

	var got Session
	handler := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = FromContext(req.Context())
	}))

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer user-token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, got.Actor.IsGuest())
	}
	profiles.AssertNotCalled(t, "Profile", mock.Anything)
}

func TestFromContextDefaultsToGuest(t *testing.T) {
	assert.Equal(t, Session{Actor: models.Guest()}, FromContext(context.Background()))
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		actor    models.Actor
		expected int
	}{
		{actor: models.Guest(), expected: http.StatusUnauthorized},
		{actor: models.Actor{Role: models.RoleUser, ID: "u1"}, expected: http.StatusForbidden},
		{actor: models.Actor{Role: models.RoleAdmin, ID: "a1"}, expected: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(string(tt.actor.Role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req = req.WithContext(WithSession(req.Context(), Session{Actor: tt.actor}))
			rec := httptest.NewRecorder()

			handler(rec, req)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
