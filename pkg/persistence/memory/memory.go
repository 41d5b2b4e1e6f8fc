// Package memory provides the volatile in-process store backing the engine by
// default. All data is lost when the process exits.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with id-keyed maps guarded by
// a single mutex. Instances and tasks are stored and returned as copies so
// readers never observe a loop pass mid-mutation.
type Persistence struct {
	mu          sync.RWMutex
	definitions map[string]*models.WorkflowDefinition
	instances   map[string]*models.WorkflowInstance
	tasks       map[string]*models.WorkflowTask
}

func NewPersistence() *Persistence {
	return &Persistence{
		definitions: make(map[string]*models.WorkflowDefinition),
		instances:   make(map[string]*models.WorkflowInstance),
		tasks:       make(map[string]*models.WorkflowTask),
	}
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return &definitionRepository{p: p}
}

func (p *Persistence) Instances() persistence.InstanceRepository {
	return &instanceRepository{p: p}
}

func (p *Persistence) Tasks() persistence.TaskRepository {
	return &taskRepository{p: p}
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

type definitionRepository struct {
	p *Persistence
}

func (r *definitionRepository) Save(_ context.Context, def *models.WorkflowDefinition) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, exists := r.p.definitions[def.ID]; exists {
		return persistence.NewStoreError("Save", def.ID, persistence.ErrDefinitionAlreadyExists)
	}

	r.p.definitions[def.ID] = def

	return nil
}

func (r *definitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	def, ok := r.p.definitions[id]
	if !ok {
		return nil, persistence.ErrDefinitionNotFound
	}

	// Definitions are immutable after registration, sharing is safe.
	return def, nil
}

func (r *definitionRepository) List(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	defs := make([]*models.WorkflowDefinition, 0, len(r.p.definitions))
	for _, def := range r.p.definitions {
		defs = append(defs, def)
	}

	return defs, nil
}

type instanceRepository struct {
	p *Persistence
}

func (r *instanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.instances[instance.ID] = cloneInstance(instance)

	return nil
}

func (r *instanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	instance, ok := r.p.instances[id]
	if !ok {
		return nil, persistence.ErrInstanceNotFound
	}

	return cloneInstance(instance), nil
}

func (r *instanceRepository) List(_ context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	instances := make([]*models.WorkflowInstance, 0, len(r.p.instances))

	for _, instance := range r.p.instances {
		if filter.WorkflowID != "" && instance.WorkflowID != filter.WorkflowID {
			continue
		}

		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}

		instances = append(instances, cloneInstance(instance))
	}

	return instances, nil
}

func (r *instanceRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.instances[id]; !ok {
		return persistence.ErrInstanceNotFound
	}

	delete(r.p.instances, id)

	return nil
}

type taskRepository struct {
	p *Persistence
}

func (r *taskRepository) Save(_ context.Context, task *models.WorkflowTask) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.tasks[task.ID] = cloneTask(task)

	return nil
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	task, ok := r.p.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return cloneTask(task), nil
}

func (r *taskRepository) ListByInstance(_ context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.WorkflowTask, 0)

	for _, task := range r.p.tasks {
		if task.InstanceID == instanceID {
			tasks = append(tasks, cloneTask(task))
		}
	}

	return tasks, nil
}

func (r *taskRepository) List(_ context.Context) ([]*models.WorkflowTask, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.WorkflowTask, 0, len(r.p.tasks))
	for _, task := range r.p.tasks {
		tasks = append(tasks, cloneTask(task))
	}

	return tasks, nil
}

func (r *taskRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.tasks[id]; !ok {
		return persistence.ErrTaskNotFound
	}

	delete(r.p.tasks, id)

	return nil
}

func cloneInstance(instance *models.WorkflowInstance) *models.WorkflowInstance {
	clone := *instance
	clone.Context = cloneMap(instance.Context)
	clone.Variables = cloneMap(instance.Variables)
	clone.History = slices.Clone(instance.History)

	return &clone
}

func cloneTask(task *models.WorkflowTask) *models.WorkflowTask {
	clone := *task
	clone.Data = cloneMap(task.Data)
	clone.Result = cloneMap(task.Result)

	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}
