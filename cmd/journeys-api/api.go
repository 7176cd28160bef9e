// Package main provides the Journeys API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/locker"
	"github.com/dukex/journeys/pkg/metrics"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/services"
	"github.com/dukex/journeys/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	compiler    *compiler.Compiler
	registrar   services.Registrar
	locker      locker.Locker
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

// APIOption customizes optional collaborators of the API.
type APIOption func(*API)

// WithEventBus publishes lifecycle events on bus.
func WithEventBus(bus eventbus.EventBus) APIOption {
	return func(a *API) { a.eventBus = bus }
}

// WithTracer traces syncs and deletes with tracer.
func WithTracer(tracer trace.Tracer) APIOption {
	return func(a *API) { a.tracer = tracer }
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	c *compiler.Compiler,
	r services.Registrar,
	l locker.Locker,
	opts ...APIOption,
) *API {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &API{
		logger:      logger,
		persistence: persistence,
		compiler:    c,
		registrar:   r,
		locker:      l,
		registry:    registry,
		metrics:     metrics.New(registry),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *API) App() *fiber.App {
	syncOpts := []services.SyncOption{services.WithMetrics(a.metrics)}
	if a.tracer != nil {
		syncOpts = append(syncOpts, services.WithTracer(a.tracer))
	}

	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
		syncOpts = append(syncOpts, services.WithEventPublisher(a.eventBus))
	}

	syncService := services.NewSync(a.compiler, a.registrar, a.logger, syncOpts...)
	journeyService := services.NewJourneys(a.persistence, syncService, a.locker, a.logger)
	runService := services.NewRuns(a.persistence, publisher, a.metrics, a.logger)

	handlers := web.NewAPIHandlers(journeyService, runService, syncService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journeys API")
	})

	handlers.Register(app)

	return app
}

// WatchEvents logs lifecycle events that need an operator's attention until ctx
// is done. It is a no-op without an event bus.
func (a *API) WatchEvents(ctx context.Context) error {
	if a.eventBus == nil {
		return nil
	}

	err := a.eventBus.Handle(events.JourneySyncFailedEvent, func(ctx context.Context, event any) error {
		failed, ok := event.(*events.JourneySyncFailed)
		if !ok {
			return nil
		}

		a.logger.WarnContext(ctx, "journey sync failed",
			"journey_id", failed.JourneyID, "stage", failed.Stage, "error", failed.Error)

		return nil
	})
	if err != nil {
		return err
	}

	err = a.eventBus.Handle(events.JourneyDeletedEvent, func(ctx context.Context, event any) error {
		deleted, ok := event.(*events.JourneyDeleted)
		if !ok {
			return nil
		}

		for _, step := range deleted.Steps {
			if step.Error != "" {
				a.logger.WarnContext(ctx, "journey cleanup step failed",
					"journey_id", deleted.JourneyID, "step", step.Step, "error", step.Error)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
