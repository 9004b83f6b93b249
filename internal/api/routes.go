package api

import (
	"fmt"
	"net/http"

	"github.com/navikt/roomboard/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitOptions configures NewRateLimiter
type RateLimitOptions struct {
	// Rate uses the limiter format, e.g. "60-M"
	Rate string
	// TrustProxy keys guests by X-Forwarded-For instead of the peer address
	TrustProxy bool
	// Client keeps counters in Redis so every replica shares them. Nil keeps them in memory.
	Client *redis.Client
	Prefix string
}

// NewRateLimiter builds the middleware limiting JSON API calls per caller.
// It must run inside the session middleware: signed-in callers are counted
// per user and everyone else per client address, so inventing tokens does
// not buy a fresh budget.
func NewRateLimiter(opts RateLimitOptions, log logrus.FieldLogger) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(opts.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", opts.Rate, err)
	}

	var store limiter.Store
	if opts.Client != nil {
		store, err = sredis.NewStoreWithOptions(opts.Client, limiter.StoreOptions{
			Prefix:   opts.Prefix + "ratelimit",
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	l := limiter.New(store, parsed, limiter.WithTrustForwardHeader(opts.TrustProxy))
	middleware := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			return callerKey(l, r)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests, try again later"})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithError(err).Error("Rate limiter failed")
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		}),
	)
	return middleware.Handler, nil
}

// callerKey identifies signed-in callers by their user ID and everyone else,
// including callers whose token was rejected, by client address
func callerKey(l *limiter.Limiter, r *http.Request) string {
	if actor := session.FromContext(r.Context()).Actor; !actor.IsGuest() && actor.ID != "" {
		return "user:" + actor.ID
	}
	return "ip:" + l.GetIPKey(r)
}

// SetupRoutes registers the health checks and the JSON API on mux.
// The API routes pass through rateLimit; the health checks never do.
func SetupRoutes(mux *http.ServeMux, board BoardServicer, rateLimit func(http.Handler) http.Handler, log logrus.FieldLogger, deps ...Pinger) {
	// Health check endpoints for Kubernetes
	mux.HandleFunc("GET /health/live", HealthLiveHandler)
	mux.Handle("GET /health/ready", HealthReadyHandler(log, deps...))

	NewBoardHandler(board, log).Register(mux, rateLimit)
}
