// Package persistence provides the storage abstraction for definitions,
// instances and tasks.
package persistence

import (
	"context"

	"github.com/procflow/procflow/pkg/models"
)

type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	Tasks() TaskRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions. Definitions are append-only:
// there is no update or delete operation.
type DefinitionRepository interface {
	Save(ctx context.Context, def *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// InstanceRepository stores workflow instances keyed by id.
type InstanceRepository interface {
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	List(ctx context.Context, filter InstanceFilter) ([]*models.WorkflowInstance, error)
	Delete(ctx context.Context, id string) error
}

// InstanceFilter narrows instance listings. Zero values match everything.
type InstanceFilter struct {
	WorkflowID string
	Status     models.InstanceStatus
}

// TaskRepository stores workflow tasks keyed by id.
type TaskRepository interface {
	Save(ctx context.Context, task *models.WorkflowTask) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTask, error)
	ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error)
	List(ctx context.Context) ([]*models.WorkflowTask, error)
	Delete(ctx context.Context, id string) error
}
