// Package registry resolves hook and predicate references embedded in
// workflow definitions to executable implementations.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/procflow/procflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger             *slog.Logger
	hookFactories      map[string]protocol.HookFactory
	predicateFactories map[string]protocol.PredicateFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:             logger,
		hookFactories:      make(map[string]protocol.HookFactory),
		predicateFactories: make(map[string]protocol.PredicateFactory),
	}
}

func (r *Registry) RegisterHook(factory protocol.HookFactory) {
	r.hookFactories[factory.ID()] = factory
}

func (r *Registry) RegisterPredicate(factory protocol.PredicateFactory) {
	r.predicateFactories[factory.ID()] = factory
}

func (r *Registry) CreateHook(kind string, config map[string]any) (protocol.Hook, error) {
	factory, ok := r.hookFactories[kind]
	if !ok {
		return nil, fmt.Errorf("hook kind '%s' not registered", kind)
	}

	return factory.Create(config)
}

func (r *Registry) CreatePredicate(kind string, config map[string]any) (protocol.Predicate, error) {
	factory, ok := r.predicateFactories[kind]
	if !ok {
		return nil, fmt.Errorf("predicate kind '%s' not registered", kind)
	}

	return factory.Create(config)
}

// ValidateHookConfig checks a hook reference against the registered factory's
// JSON schema. Called during definition registration so malformed hook
// configuration is rejected before any instance runs.
func (r *Registry) ValidateHookConfig(kind string, config map[string]any) error {
	factory, ok := r.hookFactories[kind]
	if !ok {
		return fmt.Errorf("hook kind '%s' not registered", kind)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate configuration for hook '%s': %w", kind, err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid configuration for hook '%s': %s", kind, result.Errors()[0].String())
	}

	return nil
}

// HasPredicate reports whether a predicate kind is registered.
func (r *Registry) HasPredicate(kind string) bool {
	_, ok := r.predicateFactories[kind]

	return ok
}
