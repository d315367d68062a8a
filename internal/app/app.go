// Package app assembles the incident engine from configuration. Both the
// HTTP server and the operator CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/notify"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/persistence"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/repository/memory"
	"github.com/spec-kit/incident-service/internal/service"
	"github.com/spec-kit/incident-service/internal/worker"
)

// Container holds the wired collaborators.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	NATS       *nats.Conn
	Repos      repository.Repositories
	Tx         repository.TxManager
	Objectives repository.ObjectiveRepository

	Assignments   *service.AssignmentService
	Incidents     *service.IncidentService
	Escalations   *service.EscalationService
	SLA           *service.SLAService
	Notifications *service.NotificationService
	Delivery      *worker.NotificationWorker
	Sweeper       *worker.SweepWorker
}

// Build connects backing services and constructs the engine. Postgres is
// used when configured; otherwise everything runs on the in-memory store.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics("incident_service"),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				c.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Repos = repository.NewRepositories(pg.Pool)
		c.Tx = repository.NewTxManager(pg.Pool)
		c.Objectives = repository.NewObjectiveRepository(pg.Pool)
	} else {
		store := memory.NewStore()
		c.Repos = store.Repositories()
		c.Tx = store
		c.Objectives = store.Objectives()
	}

	c.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	c.Objectives = repository.NewCachedObjectiveRepository(c.Objectives, c.Redis.Client, cfg.Redis.ObjectiveCacheTTL, logger)

	notifier, err := c.buildNotifier()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Delivery = worker.NewNotificationWorker(notifier,
		cfg.Notification.QueueSize, cfg.Notification.DeliveryWorkers, cfg.Notification.DeliveryTimeout(), logger)

	dispatcher := events.NewInMemoryDispatcher()
	c.Notifications = service.NewNotificationService(dispatcher, c.Delivery, logger)
	c.Notifications.RegisterHandlers()

	c.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		Tx:         c.Tx,
		Repos:      c.Repos,
		Dispatcher: dispatcher,
		Policy:     service.AssignmentPolicyFromConfig(cfg.Assignment),
		Logger:     logger,
		Metrics:    c.Metrics,
	})
	c.Incidents = service.NewIncidentService(service.IncidentDependencies{
		Tx:          c.Tx,
		Repos:       c.Repos,
		Assignments: c.Assignments,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	c.Escalations = service.NewEscalationService(service.EscalationDependencies{
		Tx:          c.Tx,
		Repos:       c.Repos,
		Assignments: c.Assignments,
		Dispatcher:  dispatcher,
		Policy:      service.EscalationPolicyFromConfig(cfg.Escalation),
		Sweep: service.SweepOptions{
			Concurrency:        cfg.Sweep.Concurrency,
			PerIncidentTimeout: cfg.Sweep.PerIncidentTimeout(),
		},
		Logger:  logger,
		Metrics: c.Metrics,
	})
	c.SLA = service.NewSLAService(service.SLADependencies{
		Incidents:  c.Repos.Incidents,
		Objectives: c.Objectives,
		Location:   cfg.SLA.Location(),
		Logger:     logger,
	})

	lease := worker.NewRedisLease(c.Redis.Client, cfg.Sweep.LockKey, cfg.Sweep.LockTTL())
	c.Sweeper = worker.NewSweepWorker(c.Escalations, lease, cfg.Sweep.Interval(), logger)
	return c, nil
}

func (c *Container) buildNotifier() (notify.Notifier, error) {
	cfg := c.Config.Notification
	sinks := notify.Multi{notify.NewLogNotifier(c.Logger, cfg.EmailFrom)}

	conn, err := persistence.NewNATS(cfg, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if conn != nil {
		c.NATS = conn
		sinks = append(sinks, notify.NewNATSNotifier(conn, cfg.SubjectPrefix))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewSlackNotifier(cfg.WebhookURL))
	}
	return sinks, nil
}

// StartNotifications delivers queued notifications in the background. The
// returned stop ends delivery and waits for the queue to drain, bounded
// by ShutdownTimeout.
func (c *Container) StartNotifications(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Delivery.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(ShutdownTimeout):
			c.Logger.Warn("notification queue not drained before shutdown")
		}
	}
}

// HealthChecks lists readiness probes for the configured backends.
func (c *Container) HealthChecks() []handlers.DependencyCheck {
	var checks []handlers.DependencyCheck
	if c.Postgres.Enabled() {
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Ping: c.Postgres.Ping})
	}
	checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: c.Redis.Ping, Optional: true})
	if c.NATS != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "nats", Ping: func(context.Context) error {
			if !c.NATS.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}, Optional: true})
	}
	return checks
}

// Close releases every connection, draining NATS first.
func (c *Container) Close() {
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			c.Logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	c.Redis.Close()
	c.Postgres.Close()
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second
