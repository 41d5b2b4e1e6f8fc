// Package log provides the builtin logging hook.
package log

import (
	"context"
	"log/slog"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/protocol"
)

type HookFactory struct{}

func NewHookFactory() *HookFactory {
	return &HookFactory{}
}

func (*HookFactory) ID() string {
	return "log"
}

func (*HookFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log when the hook fires.",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

func (f *HookFactory) Create(config map[string]any) (protocol.Hook, error) {
	if config == nil {
		config = map[string]any{}
	}

	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	return &Hook{message: message, level: level}, nil
}

type Hook struct {
	message string
	level   string
}

func (h *Hook) Execute(ctx context.Context, scope *models.ExecutionScope) (any, error) {
	logger := scope.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("hook", "log", "instance_id", scope.InstanceID, "state", scope.CurrentState)

	switch h.level {
	case "debug":
		logger.DebugContext(ctx, h.message)
	case "warn":
		logger.WarnContext(ctx, h.message)
	case "error":
		logger.ErrorContext(ctx, h.message)
	default:
		logger.InfoContext(ctx, h.message)
	}

	return map[string]any{"message": h.message}, nil
}
