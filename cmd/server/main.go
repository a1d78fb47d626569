package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pinforge/pin-server-go/internal/config"
	"github.com/pinforge/pin-server-go/internal/database"
	"github.com/pinforge/pin-server-go/internal/handler"
	"github.com/pinforge/pin-server-go/internal/jobs"
	"github.com/pinforge/pin-server-go/internal/middleware"
	"github.com/pinforge/pin-server-go/internal/redis"
	"github.com/pinforge/pin-server-go/internal/repository"
	"github.com/pinforge/pin-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	pinRepo := repository.NewPinRepository(db.DB)

	generator := service.NewGenerator(service.DefaultAlphabet, cfg.PinLength)
	pinService := service.NewPinService(pinRepo, generator, service.Options{
		DefaultTTL: cfg.DefaultTTL(),
	})

	adminAuth := middleware.NewAdminAuthMiddleware(middleware.BearerToken(cfg.AdminToken))
	verifyRateLimit := middleware.NewVerifyRateLimitMiddleware(redisClient.Client, cfg.VerifyRateLimitPerMin)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.Origins())
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	pinHandler := handler.NewPinHandler(pinService, adminAuth.Handler, verifyRateLimit.Handler)
	healthHandler := handler.NewHealthHandler(db, pinRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(corsMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/pins", func(r chi.Router) {
		r.Mount("/", pinHandler.Routes())
	})

	retentionJob := jobs.NewRetentionJob(pinRepo, cfg.RetentionPeriod(), config.RetentionJobInterval)
	retentionJob.Start()
	defer retentionJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
