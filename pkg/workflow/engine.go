package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/procflow/procflow/pkg/eventbus"
	"github.com/procflow/procflow/pkg/events"
	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
	"github.com/procflow/procflow/pkg/registry"
)

// Engine owns the three id-keyed collections (definitions, instances, tasks)
// and every operation that touches them. All instance mutation funnels through
// per-instance serialization: a loop pass or a task operation holds the
// instance's lock, and drive passes queue through the dispatcher.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer

	dispatcher *dispatcher
	locks      keyedMutex
	interp     models.SimpleConditionInterpreter

	now func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		registry:    reg,
		publisher:   publisher,
		logger:      logger.With("module", "workflow_engine"),
		tracer:      otel.Tracer("procflow/workflow"),
		dispatcher:  newDispatcher(),
		now:         time.Now,
	}
}

// RegisterWorkflow validates and stores a definition, assigning an id when
// none is supplied. Validation fails fast on the first violation found.
func (e *Engine) RegisterWorkflow(ctx context.Context, def *models.WorkflowDefinition) (string, error) {
	if err := e.validateDefinition(def); err != nil {
		return "", err
	}

	if def.ID == "" {
		def.ID = uuid.New().String()
	}

	if def.Version == 0 {
		def.Version = 1
	}

	def.Status = models.DefinitionStatusActive
	def.CreatedAt = e.now().UTC()

	if err := e.persistence.Definitions().Save(ctx, def); err != nil {
		return "", fmt.Errorf("failed to store workflow definition: %w", err)
	}

	e.logger.InfoContext(ctx, "Registered workflow definition",
		"workflow_id", def.ID, "name", def.Name, "states", len(def.States))

	event := events.WorkflowRegistered{
		BaseEvent: events.NewBaseEvent(events.WorkflowRegisteredEvent, def.ID),
		Name:      def.Name,
		Version:   def.Version,
	}
	e.publish(ctx, def.ID, event)

	return def.ID, nil
}

func (e *Engine) validateDefinition(def *models.WorkflowDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return NewValidationError("name", "name is required")
	}

	if len(def.States) == 0 {
		return NewValidationError("states", "at least one state is required")
	}

	if _, ok := def.StateByName(def.InitialState); !ok {
		return NewValidationError("initial_state",
			fmt.Sprintf("initial state %q is not a state of the workflow", def.InitialState))
	}

	for i, tr := range def.Transitions {
		if _, ok := def.StateByName(tr.From); !ok {
			return NewValidationError(fmt.Sprintf("transitions[%d].from", i),
				fmt.Sprintf("state %q is not a state of the workflow", tr.From))
		}

		if _, ok := def.StateByName(tr.To); !ok {
			return NewValidationError(fmt.Sprintf("transitions[%d].to", i),
				fmt.Sprintf("state %q is not a state of the workflow", tr.To))
		}
	}

	seen := make(map[string]bool, len(def.States))
	for _, s := range def.States {
		if seen[s.Name] {
			return NewValidationError("states", fmt.Sprintf("duplicate state name %q", s.Name))
		}

		seen[s.Name] = true
	}

	return e.validateHookReferences(def)
}

// validateHookReferences resolves every hook and predicate reference in the
// definition against the registry and checks configurations against the
// registered JSON schemas.
func (e *Engine) validateHookReferences(def *models.WorkflowDefinition) error {
	if e.registry == nil {
		return nil
	}

	checkHook := func(field string, spec *models.HookSpec) error {
		if spec == nil {
			return nil
		}

		if err := e.registry.ValidateHookConfig(spec.Kind, spec.Configuration); err != nil {
			return NewValidationError(field, err.Error())
		}

		return nil
	}

	for i, s := range def.States {
		for field, spec := range map[string]*models.HookSpec{
			fmt.Sprintf("states[%d].entry", i):  s.Entry,
			fmt.Sprintf("states[%d].exit", i):   s.Exit,
			fmt.Sprintf("states[%d].action", i): s.Action,
		} {
			if err := checkHook(field, spec); err != nil {
				return err
			}
		}
	}

	for i, tr := range def.Transitions {
		if err := checkHook(fmt.Sprintf("transitions[%d].action", i), tr.Action); err != nil {
			return err
		}

		if tr.Condition != nil && tr.Condition.Kind != "" && !e.registry.HasPredicate(tr.Condition.Kind) {
			return NewValidationError(fmt.Sprintf("transitions[%d].condition", i),
				fmt.Sprintf("predicate kind '%s' not registered", tr.Condition.Kind))
		}
	}

	return nil
}

// StartWorkflow creates a Running instance of an Active definition and
// schedules its execution loop. The caller never blocks on workflow progress;
// the returned id is usable immediately.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID string, initialContext map[string]any, session any) (string, error) {
	def, err := e.persistence.Definitions().GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if def.Status != models.DefinitionStatusActive {
		return "", NewInvalidStateError("start", workflowID, string(def.Status))
	}

	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		WorkflowID:   workflowID,
		Status:       models.InstanceStatusRunning,
		Context:      mergeMaps(nil, initialContext),
		CurrentState: def.InitialState,
		History:      []models.WorkflowHistoryEntry{},
		Variables:    map[string]any{},
		StartedAt:    e.now().UTC(),
	}

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return "", fmt.Errorf("failed to store workflow instance: %w", err)
	}

	e.logger.InfoContext(ctx, "Started workflow instance",
		"workflow_id", workflowID, "instance_id", instance.ID, "initial_state", def.InitialState)

	e.scheduleDrive(instance.ID, session)

	return instance.ID, nil
}

// SuspendWorkflow moves a Running instance to Suspended. Any other status is
// left untouched.
func (e *Engine) SuspendWorkflow(ctx context.Context, instanceID string) error {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status != models.InstanceStatusRunning {
		return nil
	}

	instance.Status = models.InstanceStatusSuspended
	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Suspended workflow instance", "instance_id", instanceID)

	event := events.WorkflowSuspended{
		BaseEvent:  events.NewBaseEvent(events.WorkflowSuspendedEvent, instance.WorkflowID),
		InstanceID: instanceID,
		State:      instance.CurrentState,
	}
	e.publish(ctx, instanceID, event)

	return nil
}

// ResumeWorkflow moves a Suspended instance back to Running and re-schedules
// its execution loop. Resuming from any other status fails with
// InvalidStateError.
func (e *Engine) ResumeWorkflow(ctx context.Context, instanceID string) error {
	unlock := e.locks.Lock(instanceID)

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		unlock()

		return err
	}

	if instance.Status != models.InstanceStatusSuspended {
		unlock()

		return NewInvalidStateError("resume", instanceID, string(instance.Status))
	}

	instance.Status = models.InstanceStatusRunning
	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		unlock()

		return err
	}

	unlock()

	e.logger.InfoContext(ctx, "Resumed workflow instance", "instance_id", instanceID)

	event := events.WorkflowResumed{
		BaseEvent:  events.NewBaseEvent(events.WorkflowResumedEvent, instance.WorkflowID),
		InstanceID: instanceID,
		State:      instance.CurrentState,
	}
	e.publish(ctx, instanceID, event)

	e.scheduleDrive(instanceID, nil)

	return nil
}

// CancelWorkflow moves an instance to Cancelled and cascades: every task of
// the instance still Pending becomes Cancelled. Cancelling an already terminal
// instance is a no-op. An in-flight hook is not interrupted; the loop observes
// the status flip on its next pass.
func (e *Engine) CancelWorkflow(ctx context.Context, instanceID string) error {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status.Terminal() {
		return nil
	}

	now := e.now().UTC()
	instance.Status = models.InstanceStatusCancelled
	instance.CompletedAt = &now

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return err
	}

	cancelled, err := e.cancelPendingTasks(ctx, instanceID)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Cancelled workflow instance",
		"instance_id", instanceID, "tasks_cancelled", cancelled)

	event := events.WorkflowCancelled{
		BaseEvent:      events.NewBaseEvent(events.WorkflowCancelledEvent, instance.WorkflowID),
		InstanceID:     instanceID,
		State:          instance.CurrentState,
		TasksCancelled: cancelled,
	}
	e.publish(ctx, instanceID, event)

	return nil
}

func (e *Engine) cancelPendingTasks(ctx context.Context, instanceID string) (int, error) {
	tasks, err := e.persistence.Tasks().ListByInstance(ctx, instanceID)
	if err != nil {
		return 0, err
	}

	cancelled := 0

	for _, task := range tasks {
		if task.Status != models.TaskStatusPending {
			continue
		}

		task.Status = models.TaskStatusCancelled
		task.UpdatedAt = e.now().UTC()

		if err := e.persistence.Tasks().Save(ctx, task); err != nil {
			return cancelled, err
		}

		cancelled++
	}

	return cancelled, nil
}

// GetWorkflowInstance returns a snapshot of one instance.
func (e *Engine) GetWorkflowInstance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	return e.persistence.Instances().GetByID(ctx, instanceID)
}

// GetWorkflowInstances lists instance snapshots, optionally filtered by
// definition and status.
func (e *Engine) GetWorkflowInstances(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	return e.persistence.Instances().List(ctx, filter)
}

// GetWorkflowDefinition returns a registered definition.
func (e *Engine) GetWorkflowDefinition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	return e.persistence.Definitions().GetByID(ctx, workflowID)
}

// SetVariable writes one variable on an instance, serialized with the
// instance's execution loop.
func (e *Engine) SetVariable(ctx context.Context, instanceID, name string, value any) error {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Variables == nil {
		instance.Variables = map[string]any{}
	}

	instance.Variables[name] = value

	return e.persistence.Instances().Save(ctx, instance)
}

// GetVariable reads one variable from an instance.
func (e *Engine) GetVariable(ctx context.Context, instanceID, name string) (any, bool, error) {
	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return nil, false, err
	}

	value, ok := instance.Variables[name]

	return value, ok, nil
}

// Wait blocks until every scheduled loop pass has drained. Used on shutdown
// and by tests; production callers normally never need it.
func (e *Engine) Wait() {
	e.dispatcher.Wait()
}

func (e *Engine) scheduleDrive(instanceID string, session any) {
	e.dispatcher.SubmitDrive(instanceID, func() {
		e.drive(context.Background(), instanceID, session)
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}

	for k, v := range src {
		dst[k] = v
	}

	return dst
}
