package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-service/internal/api/http"
	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/app"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	flushErrors, err := observability.InitErrorReporting(cfg.Sentry, cfg.App, logger)
	if err != nil {
		logger.Fatal("failed to init error reporting", zap.Error(err))
	}
	defer flushErrors()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build service", zap.Error(err))
	}
	defer c.Close()
	stopNotifications := c.StartNotifications(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(server, logger, c.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, c.HealthChecks()...),
		Incidents:      handlers.NewIncidentsHandler(c.Incidents, c.Assignments, c.Escalations),
		SLA:            handlers.NewSLAHandler(c.SLA, nil),
		Sweeps:         handlers.NewSweepsHandler(c.Sweeper),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, c.Repos.Technicians),
		Metrics:        c.Metrics,
	})

	if cfg.Sweep.Enabled {
		go c.Sweeper.Run(ctx)
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := server.ShutdownWithTimeout(app.ShutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	stopNotifications()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
