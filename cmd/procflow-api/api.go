// Package main provides the Procflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/robfig/cron/v3"

	"github.com/procflow/procflow/pkg/eventbus"
	"github.com/procflow/procflow/pkg/persistence"
	"github.com/procflow/procflow/pkg/registry"
	"github.com/procflow/procflow/pkg/web"
	"github.com/procflow/procflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	engine      *workflow.Engine
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		engine:      workflow.NewEngine(persistence, registry, eventBus, logger),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Procflow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

// StartSweeper schedules periodic pruning of finished instances. The
// returned stop function blocks until an in-flight sweep finishes.
func (a *API) StartSweeper(ctx context.Context, schedule string, retentionHours int) (func(), error) {
	retention := time.Duration(retentionHours) * time.Hour

	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		removed, err := a.engine.CleanupCompletedInstances(ctx, retention)
		if err != nil {
			a.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)

			return
		}

		a.logger.InfoContext(ctx, "Retention sweep finished", "removed", removed, "retention", retention)
	})
	if err != nil {
		return nil, err
	}

	c.Start()

	a.logger.InfoContext(ctx, "Retention sweeper started", "schedule", schedule, "retention", retention)

	return func() { <-c.Stop().Done() }, nil
}

func (a *API) Start(port int) error {
	a.logger.Info("Starting Procflow API server", "port", port)

	return a.App().Listen(":" + strconv.Itoa(port))
}
