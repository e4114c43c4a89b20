package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"schoolevents/internal/auth"
	"schoolevents/internal/config"
	"schoolevents/internal/handler"
	"schoolevents/internal/httpmiddleware"
	"schoolevents/internal/logging"
	"schoolevents/internal/school"
	"schoolevents/internal/seed"
	"schoolevents/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("dev", "info").Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = redisClient.Close() }()

	var limiter httpmiddleware.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin, "schoolevents:ratelimit")
	default:
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	hasher := auth.BcryptHasher{}
	repo := school.NewRepository(db)
	svc := school.NewService(repo, hasher,
		school.WithLocation(loc),
		school.WithLogger(log.With().Str("component", "school").Logger()),
	)
	seeder := seed.New(repo, hasher, loc, log.With().Str("component", "seed").Logger())

	h := handler.New(handler.Deps{
		Service: svc,
		Seeder:  seeder,
		DB:      db,
		Redis:   redisClient,
		Limiter: limiter,
		Log:     log,
	}, handler.Config{
		SessionSecret: cfg.SessionSecret,
		SecureCookies: cfg.IsProduction(),
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		AccessTTL:     cfg.AccessTTL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", string(db.Dialect)).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info().Msg("shutting down server")

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}
