package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/navikt/roomboard/internal/api"
	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/config"
	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/poller"
	"github.com/navikt/roomboard/internal/repository"
	redisrepo "github.com/navikt/roomboard/internal/repository/redis"
	"github.com/navikt/roomboard/internal/service"
	"github.com/navikt/roomboard/internal/session"
	"github.com/navikt/roomboard/internal/web"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// settings is everything the application reads from the environment
type settings struct {
	BookingAPI config.BookingAPIConfig
	Redis      config.RedisConfig
	Board      config.BoardConfig
}

func loadSettings() settings {
	return settings{
		BookingAPI: config.GetBookingAPIConfig(),
		Redis:      config.GetRedisConfig(),
		Board:      config.GetBoardConfig(),
	}
}

// app is the wired room board
type app struct {
	handler http.Handler
	web     *web.Handler
	poller  *poller.Poller
	close   func() error
}

// newApp wires repository, booking API client, board service, poller and
// HTTP handlers. ctx bounds the lifetime of background polling.
func newApp(ctx context.Context, cfg settings, repo repository.Repository, log logrus.FieldLogger) (*app, error) {
	client := bookingapi.NewClient(cfg.BookingAPI)
	resolver := session.NewResolver(client, log.WithField("component", "session"))

	board := service.NewBoardService(repo, client, log.WithField("component", "board"),
		service.WithServiceCredential(bookingapi.Credential(cfg.BookingAPI.ServiceToken)),
		service.WithMaxAge(cfg.Board.PollInterval))

	refresh := poller.New(cfg.Board.PollInterval, board.Refresh, log.WithField("component", "poller"))

	// Without KeepPolling the board only refreshes while someone is watching it
	var viewers web.Viewers
	if !cfg.Board.KeepPolling {
		viewers = poller.NewShared(ctx, refresh)
	}

	sseManager := web.NewSSEManager(viewers, log.WithField("component", "sse"))

	webHandler, err := web.NewHandler(board, sseManager, cfg.Board.Location, imageBaseURL(cfg.BookingAPI.BaseURL), log.WithField("component", "web"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web handler: %w", err)
	}

	adminHandler, err := web.NewAdminHandler(board, cfg.Board.Location, log.WithField("component", "admin"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	// Push every board change to open pages
	board.RegisterUpdateCallback(webHandler.NotifyUpdate)

	var (
		limiterClient *redis.Client
		deps          []api.Pinger
	)
	if redisRepo, ok := repo.(*redisrepo.Repository); ok {
		limiterClient = redisRepo.Client()
		deps = append(deps, redisRepo)
	}
	rateLimit, err := api.NewRateLimiter(api.RateLimitOptions{
		Rate:       cfg.Board.RateLimit,
		TrustProxy: cfg.Board.TrustProxy,
		Client:     limiterClient,
		Prefix:     cfg.Redis.KeyPrefix,
	}, log.WithField("component", "ratelimit"))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, board, rateLimit, log.WithField("component", "api"), deps...)
	webHandler.SetupRoutes(mux)
	adminHandler.SetupAdminRoutes(mux)

	handler := web.Chain(mux,
		web.RequestLogger(log.WithField("component", "http")),
		web.HTTPProtocolMiddleware,
		resolver.Middleware,
	)

	if cfg.Board.KeepPolling {
		if err := refresh.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start poller: %w", err)
		}
	}

	return &app{
		handler: handler,
		web:     webHandler,
		poller:  refresh,
		close: func() error {
			if closer, ok := repo.(interface{ Close() error }); ok {
				return closer.Close()
			}
			return nil
		},
	}, nil
}

// stop ends background polling and closes the repository.
// SSE streams must already be closed.
func (a *app) stop() error {
	a.poller.Stop()
	return a.close()
}

// imageBaseURL derives where room images are served from the booking API URL,
// e.g. https://host/api becomes https://host/uploads
func imageBaseURL(apiURL string) string {
	return strings.TrimSuffix(strings.TrimRight(apiURL, "/"), "/api") + "/uploads"
}

func main() {
	config.Load()
	log := logger.New(config.GetLogConfig())

	if err := run(log); err != nil {
		log.WithError(err).Fatal("Room board stopped")
	}
}

func run(log *logrus.Logger) error {
	cfg := loadSettings()

	// The booking API sometimes omits the offset; those times are local to the rooms
	models.SetLocalZone(cfg.Board.Location)

	repo, err := repository.NewRepository(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApp(ctx, cfg, repo, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Board.Port,
		Handler:      application.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":        cfg.Board.Port,
			"redis":       cfg.Redis.Enabled,
			"keepPolling": cfg.Board.KeepPolling,
		}).Info("Starting room board server")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		application.web.Shutdown()
		application.stop()
		return fmt.Errorf("error starting server: %w", err)

	case <-ctx.Done():
		log.Info("Shutting down server...")

		// Close SSE connections first so Shutdown does not wait on them
		application.web.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Close()
			application.stop()
			return fmt.Errorf("error shutting down server: %w", err)
		}

		if err := application.stop(); err != nil {
			log.WithError(err).Warn("Error closing repository")
		}
		log.Info("Server gracefully stopped")
		return nil
	}
}
