// Package redis provides an external store for deployments that need engine
// state to survive process restarts. The key layout mirrors the in-memory
// store: one JSON value per entity plus one index set per collection.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
)

type Persistence struct {
	client goredis.UniversalClient
	prefix string
}

func NewPersistence(client goredis.UniversalClient, prefix string) *Persistence {
	if prefix == "" {
		prefix = "procflow:"
	}

	return &Persistence{client: client, prefix: prefix}
}

// NewPersistenceFromURL connects using a redis:// URL.
func NewPersistenceFromURL(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewPersistence(goredis.NewClient(opts), ""), nil
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

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) key(collection, id string) string {
	return p.prefix + collection + ":" + id
}

func (p *Persistence) indexKey(collection string) string {
	return p.prefix + collection
}

func (p *Persistence) save(ctx context.Context, collection, id string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key(collection, id), payload, 0)
	pipe.SAdd(ctx, p.indexKey(collection), id)

	_, err = pipe.Exec(ctx)

	return err
}

func (p *Persistence) get(ctx context.Context, collection, id string, out any, notFound error) error {
	payload, err := p.client.Get(ctx, p.key(collection, id)).Bytes()
	if err == goredis.Nil {
		return notFound
	}

	if err != nil {
		return err
	}

	return json.Unmarshal(payload, out)
}

func (p *Persistence) delete(ctx context.Context, collection, id string, notFound error) error {
	removed, err := p.client.Del(ctx, p.key(collection, id)).Result()
	if err != nil {
		return err
	}

	if removed == 0 {
		return notFound
	}

	return p.client.SRem(ctx, p.indexKey(collection), id).Err()
}

func (p *Persistence) ids(ctx context.Context, collection string) ([]string, error) {
	return p.client.SMembers(ctx, p.indexKey(collection)).Result()
}

type definitionRepository struct {
	p *Persistence
}

func (r *definitionRepository) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	exists, err := r.p.client.Exists(ctx, r.p.key("definition", def.ID)).Result()
	if err != nil {
		return err
	}

	if exists > 0 {
		return persistence.NewStoreError("Save", def.ID, persistence.ErrDefinitionAlreadyExists)
	}

	return r.p.save(ctx, "definition", def.ID, def)
}

func (r *definitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	if err := r.p.get(ctx, "definition", id, &def, persistence.ErrDefinitionNotFound); err != nil {
		return nil, err
	}

	return &def, nil
}

func (r *definitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	ids, err := r.p.ids(ctx, "definition")
	if err != nil {
		return nil, err
	}

	defs := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		def, err := r.GetByID(ctx, id)
		if err == persistence.ErrDefinitionNotFound {
			continue
		}

		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	return defs, nil
}

type instanceRepository struct {
	p *Persistence
}

func (r *instanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	return r.p.save(ctx, "instance", instance.ID, instance)
}

func (r *instanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	if err := r.p.get(ctx, "instance", id, &instance, persistence.ErrInstanceNotFound); err != nil {
		return nil, err
	}

	return &instance, nil
}

func (r *instanceRepository) List(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	ids, err := r.p.ids(ctx, "instance")
	if err != nil {
		return nil, err
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err == persistence.ErrInstanceNotFound {
			continue
		}

		if err != nil {
			return nil, err
		}

		if filter.WorkflowID != "" && instance.WorkflowID != filter.WorkflowID {
			continue
		}

		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *instanceRepository) Delete(ctx context.Context, id string) error {
	return r.p.delete(ctx, "instance", id, persistence.ErrInstanceNotFound)
}

type taskRepository struct {
	p *Persistence
}

func (r *taskRepository) Save(ctx context.Context, task *models.WorkflowTask) error {
	return r.p.save(ctx, "task", task.ID, task)
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	var task models.WorkflowTask
	if err := r.p.get(ctx, "task", id, &task, persistence.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *taskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	tasks, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowTask, 0, len(tasks))

	for _, task := range tasks {
		if task.InstanceID == instanceID {
			filtered = append(filtered, task)
		}
	}

	return filtered, nil
}

func (r *taskRepository) List(ctx context.Context) ([]*models.WorkflowTask, error) {
	ids, err := r.p.ids(ctx, "task")
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.WorkflowTask, 0, len(ids))

	for _, id := range ids {
		task, err := r.GetByID(ctx, id)
		if err == persistence.ErrTaskNotFound {
			continue
		}

		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	return r.p.delete(ctx, "task", id, persistence.ErrTaskNotFound)
}
