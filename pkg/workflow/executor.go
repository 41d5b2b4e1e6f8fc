package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/procflow/procflow/pkg/events"
	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/otelhelper"
)

// maxStepsPerPass bounds a single loop pass so a definition with an
// unconditional cycle cannot pin a worker forever.
const maxStepsPerPass = 1000

// drive runs the execution loop for one instance until it reaches a terminal
// status or stalls awaiting an external stimulus. Each step holds the
// instance's lock, so cancel/suspend and task completions land between steps,
// never in the middle of one.
func (e *Engine) drive(ctx context.Context, instanceID string, session any) {
	ctx, span := e.tracer.Start(ctx, "workflow.drive",
		trace.WithAttributes(attribute.String(otelhelper.InstanceIDKey, instanceID)))
	defer span.End()

	for steps := 0; ; steps++ {
		if steps >= maxStepsPerPass {
			e.failStepLimitExceeded(ctx, instanceID)

			return
		}

		if !e.step(ctx, instanceID, session) {
			return
		}
	}
}

// step performs one iteration of the loop: enter the current state if this
// visit has not been entered yet, then try to select and apply an outgoing
// transition. Returns true when a transition was applied and the loop should
// keep going.
func (e *Engine) step(ctx context.Context, instanceID string, session any) bool {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Dropping loop pass, instance unavailable",
			"instance_id", instanceID, "error", err)

		return false
	}

	if instance.Status != models.InstanceStatusRunning {
		return false
	}

	logger := e.logger.With("instance_id", instanceID, "workflow_id", instance.WorkflowID)

	def, err := e.persistence.Definitions().GetByID(ctx, instance.WorkflowID)
	if err != nil {
		e.failInstance(ctx, instance, instance.CurrentState, err)

		return false
	}

	state, ok := def.StateByName(instance.CurrentState)
	if !ok {
		e.failInstance(ctx, instance, instance.CurrentState,
			fmt.Errorf("state %q: %w", instance.CurrentState, ErrDefinitionNotFound))

		return false
	}

	scope := e.newScope(instance, session, logger)

	if !instance.EnteredCurrentState() {
		if err := e.executeState(ctx, instance, state, scope); err != nil {
			e.failInstance(ctx, instance, state.Name, err)

			return false
		}

		if err := e.persistence.Instances().Save(ctx, instance); err != nil {
			logger.ErrorContext(ctx, "Failed to store instance after state entry", "error", err)

			return false
		}
	}

	next, err := e.determineNextState(ctx, def, instance, scope)
	if err != nil {
		e.failInstance(ctx, instance, state.Name, err)

		return false
	}

	if next == nil {
		if state.IsFinal {
			e.completeInstance(ctx, instance, state.Name)

			return false
		}

		// No transition is currently satisfiable; the instance stays Running
		// and waits for the next stimulus.
		logger.DebugContext(ctx, "Instance parked awaiting stimulus", "state", state.Name)

		return false
	}

	if err := e.applyTransition(ctx, instance, state, *next, scope); err != nil {
		e.failInstance(ctx, instance, state.Name, err)

		return false
	}

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		logger.ErrorContext(ctx, "Failed to store instance after transition", "error", err)

		return false
	}

	return true
}

// executeState runs the entry hook, instantiates the state's task templates,
// runs the action hook, appends the entry history record and emits
// workflow.state.entered.
func (e *Engine) executeState(ctx context.Context, instance *models.WorkflowInstance, state models.WorkflowState, scope *models.ExecutionScope) error {
	scope.CurrentState = state.Name

	if err := e.runHook(ctx, state.Entry, scope); err != nil {
		return fmt.Errorf("entry hook for state %q: %w", state.Name, err)
	}

	for _, template := range state.Tasks {
		if _, err := e.createTask(ctx, instance, state.Name, template); err != nil {
			return fmt.Errorf("task template %q for state %q: %w", template.Name, state.Name, err)
		}
	}

	if err := e.runHook(ctx, state.Action, scope); err != nil {
		return fmt.Errorf("action hook for state %q: %w", state.Name, err)
	}

	instance.History = append(instance.History, models.WorkflowHistoryEntry{
		State:     state.Name,
		Timestamp: e.now().UTC(),
		Action:    models.HistoryActionEntry,
	})

	event := events.WorkflowStateEntered{
		BaseEvent:  events.NewBaseEvent(events.WorkflowStateEnteredEvent, instance.WorkflowID),
		InstanceID: instance.ID,
		State:      state.Name,
	}
	e.publish(ctx, instance.ID, event)

	return nil
}

// determineNextState scans the definition's transitions in declaration order
// and returns the first one out of the current state whose condition holds or
// whose elapsed-time timeout has expired. A final state never transitions.
// Timeouts are evaluated lazily, only when this runs as part of a step.
func (e *Engine) determineNextState(ctx context.Context, def *models.WorkflowDefinition, instance *models.WorkflowInstance, scope *models.ExecutionScope) (*models.WorkflowTransition, error) {
	state, ok := def.StateByName(instance.CurrentState)
	if !ok || state.IsFinal {
		return nil, nil
	}

	for i := range def.Transitions {
		tr := def.Transitions[i]
		if tr.From != instance.CurrentState {
			continue
		}

		if tr.Condition.Empty() && tr.Timeout == 0 {
			return &tr, nil
		}

		if !tr.Condition.Empty() {
			pass, err := e.evaluateCondition(ctx, tr.Condition, instance, scope)
			if err != nil {
				return nil, fmt.Errorf("condition on transition %s->%s: %w", tr.From, tr.To, err)
			}

			if pass {
				return &tr, nil
			}
		}

		if tr.Timeout > 0 {
			if seen, ok := instance.LastSeenAt(tr.From); ok && e.now().Sub(seen) > tr.Timeout {
				return &tr, nil
			}
		}
	}

	return nil, nil
}

// applyTransition leaves the current state: exit hook (recorded only when one
// is present), transition action, transition history record, new current state.
func (e *Engine) applyTransition(ctx context.Context, instance *models.WorkflowInstance, state models.WorkflowState, tr models.WorkflowTransition, scope *models.ExecutionScope) error {
	if state.Exit != nil {
		if err := e.runHook(ctx, state.Exit, scope); err != nil {
			return fmt.Errorf("exit hook for state %q: %w", state.Name, err)
		}

		instance.History = append(instance.History, models.WorkflowHistoryEntry{
			State:     state.Name,
			Timestamp: e.now().UTC(),
			Action:    models.HistoryActionExit,
		})
	}

	if err := e.runHook(ctx, tr.Action, scope); err != nil {
		return fmt.Errorf("action on transition %s->%s: %w", tr.From, tr.To, err)
	}

	data := map[string]any{"from": tr.From}
	if tr.Reason != "" {
		data["reason"] = tr.Reason
	}

	instance.History = append(instance.History, models.WorkflowHistoryEntry{
		State:     tr.To,
		Timestamp: e.now().UTC(),
		Action:    models.HistoryActionTransition,
		Data:      data,
	})

	instance.CurrentState = tr.To
	scope.CurrentState = tr.To

	return nil
}

func (e *Engine) evaluateCondition(ctx context.Context, cond *models.Condition, instance *models.WorkflowInstance, scope *models.ExecutionScope) (bool, error) {
	if cond.Empty() {
		return true, nil
	}

	if cond.Kind != "" {
		if e.registry == nil {
			return false, fmt.Errorf("predicate kind '%s': no hook registry configured", cond.Kind)
		}

		predicate, err := e.registry.CreatePredicate(cond.Kind, cond.Configuration)
		if err != nil {
			return false, err
		}

		return predicate.Evaluate(ctx, scope)
	}

	return e.interp.Evaluate(cond.Expression, instance.Context)
}

func (e *Engine) runHook(ctx context.Context, spec *models.HookSpec, scope *models.ExecutionScope) error {
	if spec == nil {
		return nil
	}

	if e.registry == nil {
		scope.Logger.WarnContext(ctx, "No hook registry configured, skipping hook", "kind", spec.Kind)

		return nil
	}

	hook, err := e.registry.CreateHook(spec.Kind, spec.Configuration)
	if err != nil {
		return err
	}

	_, err = hook.Execute(ctx, scope)

	return err
}

// failInstance captures a loop error onto the instance. The error never
// propagates to whoever triggered the loop; it surfaces through the instance
// record and the workflow.error event.
func (e *Engine) failInstance(ctx context.Context, instance *models.WorkflowInstance, state string, cause error) {
	execErr := &ExecutionError{InstanceID: instance.ID, State: state, Err: cause}

	now := e.now().UTC()
	instance.Status = models.InstanceStatusFailed
	instance.Error = cause.Error()
	instance.CompletedAt = &now

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		e.logger.ErrorContext(ctx, "Failed to store failed instance",
			"instance_id", instance.ID, "error", err)
	}

	e.logger.ErrorContext(ctx, "Workflow instance failed",
		"instance_id", instance.ID, "state", state, "error", execErr)

	event := events.WorkflowError{
		BaseEvent:  events.NewBaseEvent(events.WorkflowErrorEvent, instance.WorkflowID),
		InstanceID: instance.ID,
		State:      state,
		Error:      cause.Error(),
	}
	e.publish(ctx, instance.ID, event)
}

func (e *Engine) completeInstance(ctx context.Context, instance *models.WorkflowInstance, finalState string) {
	now := e.now().UTC()
	instance.Status = models.InstanceStatusCompleted
	instance.CompletedAt = &now

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		e.logger.ErrorContext(ctx, "Failed to store completed instance",
			"instance_id", instance.ID, "error", err)

		return
	}

	e.logger.InfoContext(ctx, "Workflow instance completed",
		"instance_id", instance.ID, "final_state", finalState)

	event := events.WorkflowCompleted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowCompletedEvent, instance.WorkflowID),
		InstanceID: instance.ID,
		FinalState: finalState,
		Duration:   now.Sub(instance.StartedAt),
	}
	e.publish(ctx, instance.ID, event)
}

func (e *Engine) failStepLimitExceeded(ctx context.Context, instanceID string) {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil || instance.Status != models.InstanceStatusRunning {
		return
	}

	e.failInstance(ctx, instance, instance.CurrentState,
		fmt.Errorf("exceeded %d transitions in a single pass, definition likely cyclic", maxStepsPerPass))
}

func (e *Engine) newScope(instance *models.WorkflowInstance, session any, logger *slog.Logger) *models.ExecutionScope {
	if instance.Context == nil {
		instance.Context = map[string]any{}
	}

	if instance.Variables == nil {
		instance.Variables = map[string]any{}
	}

	return &models.ExecutionScope{
		InstanceID:   instance.ID,
		WorkflowID:   instance.WorkflowID,
		CurrentState: instance.CurrentState,
		Context:      instance.Context,
		Variables:    instance.Variables,
		Session:      session,
		Logger:       logger,
	}
}
