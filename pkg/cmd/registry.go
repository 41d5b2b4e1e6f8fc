package cmd

import (
	"log/slog"

	"github.com/procflow/procflow/pkg/registry"
)

func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	registry.RegisterBuiltins(reg)

	return reg
}
