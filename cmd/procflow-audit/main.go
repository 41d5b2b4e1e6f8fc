package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/procflow/procflow/pkg/cmd"
	"github.com/procflow/procflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "procflow-audit",
		EnableShellCompletion: true,
		Usage:                 "Consume workflow events and emit an audit trail",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "auditor-id",
				Aliases: []string{"id"},
				Usage:   "Custom auditor ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("AUDITOR_ID"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (gochannel, kafka)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
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

			auditorID := command.String("auditor-id")
			if auditorID == "" {
				auditorID = "audit-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("procflow-audit").With("auditor_id", auditorID)

			logger.InfoContext(ctx, "Initializing Procflow Auditor")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			auditor := NewAuditor(auditorID, eventBus, logger)

			if err := auditor.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Auditor stopped with error", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
