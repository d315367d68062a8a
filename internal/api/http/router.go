package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Incidents      *handlers.IncidentsHandler
	SLA            *handlers.SLAHandler
	Sweeps         *handlers.SweepsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	authn := cfg.AuthMiddleware.Handle
	technician := auth.RequireTechnician()
	spoc := auth.RequireSPOC()

	incidents := app.Group("/incidents", authn, auth.RequireAnyRole())
	incidents.Post("/", cfg.Incidents.CreateIncident)
	incidents.Get("/:id", cfg.Incidents.GetIncident)
	incidents.Post("/:id/assign", spoc, cfg.Incidents.Assign)
	incidents.Post("/:id/reassign", spoc, cfg.Incidents.Reassign)
	incidents.Post("/:id/take", technician, cfg.Incidents.Take)
	incidents.Post("/:id/start", technician, cfg.Incidents.Start)
	incidents.Post("/:id/resolve", technician, cfg.Incidents.Resolve)
	incidents.Post("/:id/close", technician, cfg.Incidents.Close)
	incidents.Post("/:id/escalate", technician, cfg.Incidents.Escalate)
	incidents.Get("/:id/escalations", cfg.Incidents.ListEscalations)
	incidents.Get("/:id/sla", cfg.SLA.IncidentSLA)

	app.Get("/sla/metrics", authn, technician, cfg.SLA.GlobalMetrics)
	app.Post("/sweeps", authn, spoc, cfg.Sweeps.Run)
}
