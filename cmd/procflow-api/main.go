package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/procflow/procflow/pkg/cmd"
	"github.com/procflow/procflow/pkg/log"
	"github.com/procflow/procflow/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "procflow-api",
		Usage:                 "Register workflow definitions and drive instances over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store URL (memory:// or redis://...)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "cleanup-schedule",
				Usage:   "Cron expression for the retention sweeper (empty disables it)",
				Value:   "",
				Sources: cli.EnvVars("CLEANUP_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "retention-hours",
				Usage:   "Finished instances older than this are pruned by the sweeper",
				Value:   24,
				Sources: cli.EnvVars("RETENTION_HOURS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Procflow API")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "procflow-api"); err != nil {
					return err
				}
			}

			registry := cmd.NewRegistry(logger)

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, persistence, registry, eventBus)

			if schedule := command.String("cleanup-schedule"); schedule != "" {
				stop, err := api.StartSweeper(ctx, schedule, command.Int("retention-hours"))
				if err != nil {
					return err
				}
				defer stop()
			}

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
