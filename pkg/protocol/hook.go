// Package protocol defines the capability interfaces hook implementations satisfy.
package protocol

import (
	"context"

	"github.com/procflow/procflow/pkg/models"
)

// Hook is an entry/exit/action callback attached to a state or transition.
// Implementations run to completion once started; cancellation of the owning
// instance does not interrupt an in-flight hook.
type Hook interface {
	Execute(ctx context.Context, scope *models.ExecutionScope) (any, error)
}

// HookFactory builds hook instances from a configuration map. The schema is
// applied to the configuration when a definition referencing the hook is
// registered.
type HookFactory interface {
	ID() string
	Schema() map[string]any
	Create(config map[string]any) (Hook, error)
}

// Predicate is a registered transition guard.
type Predicate interface {
	Evaluate(ctx context.Context, scope *models.ExecutionScope) (bool, error)
}

// PredicateFactory builds predicate instances from a configuration map.
type PredicateFactory interface {
	ID() string
	Create(config map[string]any) (Predicate, error)
}
