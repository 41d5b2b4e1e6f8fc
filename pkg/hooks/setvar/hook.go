// Package setvar provides the builtin hook that writes an instance variable.
package setvar

import (
	"context"
	"errors"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/protocol"
)

type HookFactory struct{}

func NewHookFactory() *HookFactory {
	return &HookFactory{}
}

func (*HookFactory) ID() string {
	return "setvar"
}

func (*HookFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Variable name to set on the instance.",
			},
			"value": map[string]any{
				"description": "Value stored under the variable name.",
			},
		},
		"required": []string{"name"},
	}
}

func (f *HookFactory) Create(config map[string]any) (protocol.Hook, error) {
	if config == nil {
		config = map[string]any{}
	}

	name, _ := config["name"].(string)
	if name == "" {
		return nil, errors.New("setvar hook requires a variable name")
	}

	return &Hook{name: name, value: config["value"]}, nil
}

type Hook struct {
	name  string
	value any
}

func (h *Hook) Execute(_ context.Context, scope *models.ExecutionScope) (any, error) {
	if scope.Variables == nil {
		return nil, errors.New("execution scope has no variables map")
	}

	scope.Variables[h.name] = h.value

	return map[string]any{"name": h.name, "value": h.value}, nil
}
