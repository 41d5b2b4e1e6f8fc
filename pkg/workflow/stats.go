package workflow

import (
	"context"
	"time"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
)

// WorkflowStats aggregates instance and task counts, optionally scoped to one
// definition.
type WorkflowStats struct {
	WorkflowID        string                        `json:"workflow_id,omitempty"`
	TotalInstances    int                           `json:"total_instances"`
	InstancesByStatus map[models.InstanceStatus]int `json:"instances_by_status"`
	AverageDuration   time.Duration                 `json:"average_duration"`
	Tasks             TaskStats                     `json:"tasks"`
}

type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// GetWorkflowStats counts instances by status, averages duration over finished
// instances and counts the tasks belonging to the selected instances. An empty
// workflowID selects everything.
func (e *Engine) GetWorkflowStats(ctx context.Context, workflowID string) (*WorkflowStats, error) {
	instances, err := e.persistence.Instances().List(ctx, persistence.InstanceFilter{WorkflowID: workflowID})
	if err != nil {
		return nil, err
	}

	stats := &WorkflowStats{
		WorkflowID:        workflowID,
		TotalInstances:    len(instances),
		InstancesByStatus: make(map[models.InstanceStatus]int),
	}

	selected := make(map[string]bool, len(instances))

	var totalDuration time.Duration

	finished := 0

	for _, instance := range instances {
		stats.InstancesByStatus[instance.Status]++
		selected[instance.ID] = true

		if instance.CompletedAt != nil {
			totalDuration += instance.CompletedAt.Sub(instance.StartedAt)
			finished++
		}
	}

	if finished > 0 {
		stats.AverageDuration = totalDuration / time.Duration(finished)
	}

	tasks, err := e.persistence.Tasks().List(ctx)
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		if !selected[task.InstanceID] {
			continue
		}

		stats.Tasks.Total++

		switch task.Status {
		case models.TaskStatusCompleted:
			stats.Tasks.Completed++
		case models.TaskStatusPending:
			stats.Tasks.Pending++
		}
	}

	return stats, nil
}

// CleanupCompletedInstances removes every instance whose completedAt is older
// than now minus the retention window, cascade-deleting its tasks, and returns
// the removed count. Running and Suspended instances are never touched.
func (e *Engine) CleanupCompletedInstances(ctx context.Context, retention time.Duration) (int, error) {
	instances, err := e.persistence.Instances().List(ctx, persistence.InstanceFilter{})
	if err != nil {
		return 0, err
	}

	cutoff := e.now().UTC().Add(-retention)
	removed := 0

	for _, instance := range instances {
		if instance.CompletedAt == nil || instance.CompletedAt.After(cutoff) {
			continue
		}

		unlock := e.locks.Lock(instance.ID)

		if err := e.persistence.Instances().Delete(ctx, instance.ID); err != nil {
			unlock()

			if persistence.IsNotFound(err) {
				continue
			}

			return removed, err
		}

		tasks, err := e.persistence.Tasks().ListByInstance(ctx, instance.ID)
		if err != nil {
			unlock()

			return removed, err
		}

		for _, task := range tasks {
			if err := e.persistence.Tasks().Delete(ctx, task.ID); err != nil && !persistence.IsNotFound(err) {
				unlock()

				return removed, err
			}
		}

		unlock()
		e.locks.Forget(instance.ID)

		removed++
	}

	if removed > 0 {
		e.logger.InfoContext(ctx, "Pruned finished workflow instances",
			"removed", removed, "retention", retention)
	}

	return removed, nil
}
