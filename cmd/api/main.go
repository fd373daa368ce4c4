package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teamup-app/teamup-backend/api/controllers"
	"github.com/teamup-app/teamup-backend/api/routes"
	"github.com/teamup-app/teamup-backend/internal/identity"
	"github.com/teamup-app/teamup-backend/internal/publisher"
	"github.com/teamup-app/teamup-backend/pkg/auth"
	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/db"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
	"github.com/teamup-app/teamup-backend/pkg/migrate"
	"github.com/teamup-app/teamup-backend/pkg/pending"
	"github.com/teamup-app/teamup-backend/pkg/pubsub"
	"github.com/teamup-app/teamup-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	eventPublisher, err := publisher.NewService(publisher.ServiceParams{
		Config:  cfg,
		Logger:  logg,
		PubSub:  pubsubClient,
		Pending: pending.NewRepository(dbClient.DB()),
		Metrics: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event publisher", err)
		os.Exit(1)
	}
	// Drain in-flight background publishes before the process exits.
	defer eventPublisher.Close()

	tokenManager, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create token manager", err)
		os.Exit(1)
	}

	identityService, err := identity.NewService(identity.ServiceParams{
		DB:             dbClient,
		Publisher:      eventPublisher,
		Tokens:         tokenManager,
		Logger:         logg,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Cfg:      cfg,
		Logg:     logg,
		Identity: identityService,
		Tokens:   tokenManager,
		Gatherer: registry,
		Readiness: []controllers.ReadinessCheck{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
			{Name: "pubsub", Pinger: pubsubClient},
		},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
	}

	logg.Info(runCtx, "api server shutting down gracefully")
}
