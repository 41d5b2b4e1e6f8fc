package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/procflow/procflow/pkg/eventbus"
	"github.com/procflow/procflow/pkg/events"
)

// Auditor subscribes to every workflow and task event and writes one
// structured log line per event. It never mutates engine state.
type Auditor struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
}

func NewAuditor(id string, eventBus eventbus.EventBus, logger *slog.Logger) *Auditor {
	return &Auditor{
		id:       id,
		logger:   logger.With("module", "auditor"),
		eventBus: eventBus,
	}
}

func (a *Auditor) Start(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Starting auditor", "auditor_id", a.id)

	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowRegisteredEvent:   a.handleWorkflowRegistered,
		events.WorkflowStateEnteredEvent: a.handleWorkflowStateEntered,
		events.WorkflowCompletedEvent:    a.handleWorkflowCompleted,
		events.WorkflowErrorEvent:        a.handleWorkflowError,
		events.WorkflowSuspendedEvent:    a.handleWorkflowSuspended,
		events.WorkflowResumedEvent:      a.handleWorkflowResumed,
		events.WorkflowCancelledEvent:    a.handleWorkflowCancelled,
		events.TaskCreatedEvent:          a.handleTaskCreated,
		events.TaskCompletedEvent:        a.handleTaskCompleted,
		events.TaskFailedEvent:           a.handleTaskFailed,
		events.TaskReassignedEvent:       a.handleTaskReassigned,
	}

	for eventType, handler := range handlers {
		if err := a.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	if err := a.eventBus.Subscribe(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	a.logger.InfoContext(ctx, "Auditor started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	a.logger.InfoContext(ctx, "Shutting down auditor...")

	return nil
}

func (a *Auditor) audit(ctx context.Context, message string, base events.BaseEvent, args ...any) {
	fields := []any{
		"event_id", base.ID,
		"event_type", base.Type,
		"workflow_id", base.WorkflowID,
		"timestamp", base.Timestamp,
	}
	fields = append(fields, args...)

	a.logger.InfoContext(ctx, message, fields...)
}

func (a *Auditor) handleWorkflowRegistered(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowRegistered)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowRegistered")

		return nil
	}

	a.audit(ctx, "Workflow registered", e.BaseEvent, "name", e.Name, "version", e.Version)

	return nil
}

func (a *Auditor) handleWorkflowStateEntered(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowStateEntered)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowStateEntered")

		return nil
	}

	a.audit(ctx, "State entered", e.BaseEvent, "instance_id", e.InstanceID, "state", e.State)

	return nil
}

func (a *Auditor) handleWorkflowCompleted(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowCompleted)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowCompleted")

		return nil
	}

	a.audit(ctx, "Workflow completed", e.BaseEvent,
		"instance_id", e.InstanceID, "final_state", e.FinalState, "duration", e.Duration)

	return nil
}

func (a *Auditor) handleWorkflowError(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowError)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowError")

		return nil
	}

	a.audit(ctx, "Workflow failed", e.BaseEvent,
		"instance_id", e.InstanceID, "state", e.State, "error", e.Error)

	return nil
}

func (a *Auditor) handleWorkflowSuspended(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowSuspended)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowSuspended")

		return nil
	}

	a.audit(ctx, "Workflow suspended", e.BaseEvent, "instance_id", e.InstanceID, "state", e.State)

	return nil
}

func (a *Auditor) handleWorkflowResumed(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowResumed)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowResumed")

		return nil
	}

	a.audit(ctx, "Workflow resumed", e.BaseEvent, "instance_id", e.InstanceID, "state", e.State)

	return nil
}

func (a *Auditor) handleWorkflowCancelled(ctx context.Context, event any) error {
	e, ok := event.(*events.WorkflowCancelled)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for WorkflowCancelled")

		return nil
	}

	a.audit(ctx, "Workflow cancelled", e.BaseEvent,
		"instance_id", e.InstanceID, "state", e.State, "tasks_cancelled", e.TasksCancelled)

	return nil
}

func (a *Auditor) handleTaskCreated(ctx context.Context, event any) error {
	e, ok := event.(*events.TaskCreated)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for TaskCreated")

		return nil
	}

	a.audit(ctx, "Task created", e.BaseEvent,
		"instance_id", e.InstanceID, "task_id", e.TaskID, "name", e.Name,
		"task_type", e.TaskType, "assigned_to", e.AssignedTo)

	return nil
}

func (a *Auditor) handleTaskCompleted(ctx context.Context, event any) error {
	e, ok := event.(*events.TaskCompleted)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for TaskCompleted")

		return nil
	}

	a.audit(ctx, "Task completed", e.BaseEvent, "instance_id", e.InstanceID, "task_id", e.TaskID)

	return nil
}

func (a *Auditor) handleTaskFailed(ctx context.Context, event any) error {
	e, ok := event.(*events.TaskFailed)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for TaskFailed")

		return nil
	}

	a.audit(ctx, "Task failed", e.BaseEvent,
		"instance_id", e.InstanceID, "task_id", e.TaskID, "error", e.Error)

	return nil
}

func (a *Auditor) handleTaskReassigned(ctx context.Context, event any) error {
	e, ok := event.(*events.TaskReassigned)
	if !ok {
		a.logger.ErrorContext(ctx, "Invalid event type for TaskReassigned")

		return nil
	}

	a.audit(ctx, "Task reassigned", e.BaseEvent,
		"instance_id", e.InstanceID, "task_id", e.TaskID, "assigned_to", e.AssignedTo)

	return nil
}
