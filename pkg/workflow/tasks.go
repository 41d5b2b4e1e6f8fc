package workflow

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/procflow/procflow/pkg/events"
	"github.com/procflow/procflow/pkg/models"
)

// createTask instantiates one task template. Invoked only by the state
// executor during state entry, under the instance's lock.
func (e *Engine) createTask(ctx context.Context, instance *models.WorkflowInstance, state string, template models.TaskTemplate) (*models.WorkflowTask, error) {
	now := e.now().UTC()

	task := &models.WorkflowTask{
		ID:         uuid.New().String(),
		InstanceID: instance.ID,
		WorkflowID: instance.WorkflowID,
		Name:       template.Name,
		Type:       template.Type,
		Status:     models.TaskStatusPending,
		AssignedTo: template.AssignedTo,
		Priority:   template.Priority,
		Data:       mergeMaps(nil, template.Data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if task.Type == "" {
		task.Type = models.TaskTypeManual
	}

	if task.AssignedTo == "" {
		task.AssignedTo = models.TaskAssigneeAny
	}

	if template.DueIn > 0 {
		due := now.Add(template.DueIn)
		task.DueDate = &due
	}

	if err := e.persistence.Tasks().Save(ctx, task); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Created workflow task",
		"task_id", task.ID, "instance_id", instance.ID, "state", state, "assigned_to", task.AssignedTo)

	event := events.TaskCreated{
		BaseEvent:  events.NewBaseEvent(events.TaskCreatedEvent, instance.WorkflowID),
		InstanceID: instance.ID,
		TaskID:     task.ID,
		Name:       task.Name,
		TaskType:   task.Type,
		AssignedTo: task.AssignedTo,
	}
	e.publish(ctx, task.ID, event)

	return task, nil
}

// TaskResultContextKey is the synthetic context key a completed task's result
// is stored under inside the owning instance's context.
func TaskResultContextKey(taskID string) string {
	return "task_" + taskID + "_result"
}

// CompleteTask moves a Pending task to Completed, merges the result into the
// task's data, stores it in the owning instance's context and re-schedules the
// instance's execution loop.
func (e *Engine) CompleteTask(ctx context.Context, taskID string, result map[string]any, session any) error {
	task, err := e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(task.InstanceID)

	// Re-read under the lock; a concurrent completion may have won.
	task, err = e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		unlock()

		return err
	}

	if task.Status != models.TaskStatusPending {
		unlock()

		return NewInvalidStateError("complete", taskID, string(task.Status))
	}

	now := e.now().UTC()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	task.Result = mergeMaps(nil, result)
	task.Data = mergeMaps(task.Data, result)

	if err := e.persistence.Tasks().Save(ctx, task); err != nil {
		unlock()

		return err
	}

	instance, err := e.persistence.Instances().GetByID(ctx, task.InstanceID)
	if err != nil {
		unlock()

		return err
	}

	if instance.Context == nil {
		instance.Context = map[string]any{}
	}

	instance.Context[TaskResultContextKey(taskID)] = result

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		unlock()

		return err
	}

	unlock()

	e.logger.InfoContext(ctx, "Completed workflow task",
		"task_id", taskID, "instance_id", task.InstanceID)

	event := events.TaskCompleted{
		BaseEvent:  events.NewBaseEvent(events.TaskCompletedEvent, task.WorkflowID),
		InstanceID: task.InstanceID,
		TaskID:     taskID,
		Result:     result,
	}
	e.publish(ctx, taskID, event)

	e.scheduleDrive(task.InstanceID, session)

	return nil
}

// FailTask moves a task to Failed and cascades the owning instance straight to
// Failed. There is no retry and no partial recovery.
func (e *Engine) FailTask(ctx context.Context, taskID string, message string, session any) error {
	task, err := e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(task.InstanceID)
	defer unlock()

	task, err = e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status.Terminal() {
		return NewInvalidStateError("fail", taskID, string(task.Status))
	}

	now := e.now().UTC()
	task.Status = models.TaskStatusFailed
	task.Error = message
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := e.persistence.Tasks().Save(ctx, task); err != nil {
		return err
	}

	instance, err := e.persistence.Instances().GetByID(ctx, task.InstanceID)
	if err != nil {
		return err
	}

	if !instance.Status.Terminal() {
		instance.Status = models.InstanceStatusFailed
		instance.Error = message
		instance.CompletedAt = &now

		if err := e.persistence.Instances().Save(ctx, instance); err != nil {
			return err
		}
	}

	e.logger.WarnContext(ctx, "Failed workflow task",
		"task_id", taskID, "instance_id", task.InstanceID, "error", message)

	event := events.TaskFailed{
		BaseEvent:  events.NewBaseEvent(events.TaskFailedEvent, task.WorkflowID),
		InstanceID: task.InstanceID,
		TaskID:     taskID,
		Error:      message,
	}
	e.publish(ctx, taskID, event)

	return nil
}

// ReassignTask updates a task's assignee. There is no status restriction on
// reassignment.
func (e *Engine) ReassignTask(ctx context.Context, taskID, assignedTo string) error {
	unlockByTask, err := e.lockTaskInstance(ctx, taskID)
	if err != nil {
		return err
	}
	defer unlockByTask()

	task, err := e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	task.AssignedTo = assignedTo
	task.UpdatedAt = e.now().UTC()

	if err := e.persistence.Tasks().Save(ctx, task); err != nil {
		return err
	}

	event := events.TaskReassigned{
		BaseEvent:  events.NewBaseEvent(events.TaskReassignedEvent, task.WorkflowID),
		InstanceID: task.InstanceID,
		TaskID:     taskID,
		AssignedTo: assignedTo,
	}
	e.publish(ctx, taskID, event)

	return nil
}

func (e *Engine) lockTaskInstance(ctx context.Context, taskID string) (func(), error) {
	task, err := e.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return e.locks.Lock(task.InstanceID), nil
}

// GetTask returns a snapshot of one task.
func (e *Engine) GetTask(ctx context.Context, taskID string) (*models.WorkflowTask, error) {
	return e.persistence.Tasks().GetByID(ctx, taskID)
}

// GetPendingTasks returns the Pending tasks assigned to the user or to the
// wildcard pool, ordered by priority descending. Ties are unordered.
func (e *Engine) GetPendingTasks(ctx context.Context, userID string) ([]*models.WorkflowTask, error) {
	tasks, err := e.persistence.Tasks().List(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.WorkflowTask, 0, len(tasks))

	for _, task := range tasks {
		if task.Status != models.TaskStatusPending {
			continue
		}

		if task.AssignedTo != userID && task.AssignedTo != models.TaskAssigneeAny {
			continue
		}

		pending = append(pending, task)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Priority > pending[j].Priority
	})

	return pending, nil
}
