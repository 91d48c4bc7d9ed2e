package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/api"
	"github.com/carebridge/carebridge/internal/booking"
	"github.com/carebridge/carebridge/internal/config"
	"github.com/carebridge/carebridge/internal/consult"
	"github.com/carebridge/carebridge/internal/db"
	"github.com/carebridge/carebridge/internal/helpdesk"
	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/metrics"
	"github.com/carebridge/carebridge/internal/notify"
	redisclient "github.com/carebridge/carebridge/internal/redis"
	"github.com/carebridge/carebridge/internal/schedule"
)

const version = "0.3.0"

func main() {
	log := newLogger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Dur("slot_duration", cfg.SlotDuration).
		Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	collector := metrics.NewCollector("carebridge")

	users := identity.NewPgRepository(pgPool)
	tokens := identity.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)

	slotRepo := schedule.NewPgRepository(pgPool)
	engine := schedule.NewEngine(slotRepo, cfg.SlotDuration, log.With().Str("component", "schedule").Logger())

	notifications := notify.NewPgRepository(pgPool)
	notifier := notify.NewAsyncNotifier(notifications, log.With().Str("component", "notify").Logger())

	bookingRepo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	coordinator := booking.NewCoordinator(bookingRepo, locker, notifier,
		log.With().Str("component", "booking").Logger())

	messages := consult.NewPgMessageRepository(pgPool)
	authorizer := consult.NewAuthorizer(bookingRepo, slotRepo)
	registry := consult.NewRegistry(log.With().Str("component", "consult").Logger())
	channel := consult.NewChannel(authorizer, messages, registry, collector,
		log.With().Str("component", "consult").Logger())

	helpdeskRepo := helpdesk.NewPgRepository(pgPool)
	helpdeskSvc := helpdesk.NewService(helpdeskRepo, notifier,
		log.With().Str("component", "helpdesk").Logger())

	handlers := &api.Handlers{
		Users:       users,
		Tokens:      tokens,
		Engine:      engine,
		Slots:       slotRepo,
		Doctors:     slotRepo,
		Coordinator: coordinator,
		Bookings:    bookingRepo,
		Messages:    messages,
		Channel:     channel,
		Metrics:     collector,
		Log:         log.With().Str("component", "api").Logger(),
	}
	helpdeskHandlers := &api.HelpdeskHandlers{
		Service:       helpdeskSvc,
		Notifications: notifications,
		Handlers:      handlers,
	}

	router := api.NewRouter(api.RouterConfig{
		Handlers: handlers,
		Helpdesk: helpdeskHandlers,
		Tokens:   tokens,
		PgPool:   pgPool,
		Redis:    rdb,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections outlive any write deadline
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
}
