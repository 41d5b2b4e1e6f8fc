package workflow

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/procflow/pkg/eventbus"
	"github.com/procflow/procflow/pkg/events"
	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
	"github.com/procflow/procflow/pkg/persistence/memory"
	"github.com/procflow/procflow/pkg/registry"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) byType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []eventbus.Event

	for _, event := range p.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func newTestEngine(t *testing.T) (*Engine, *capturingPublisher) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg := registry.NewRegistry(logger)
	registry.RegisterBuiltins(reg)

	publisher := &capturingPublisher{}

	return NewEngine(memory.NewPersistence(), reg, publisher, logger), publisher
}

// twoStateDefinition is a Start state with an unconditional transition into a
// final End state.
func twoStateDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name: "order-processing",
		States: []models.WorkflowState{
			{Name: "Start"},
			{Name: "End", IsFinal: true},
		},
		Transitions: []models.WorkflowTransition{
			{From: "Start", To: "End"},
		},
		InitialState: "Start",
	}
}

// reviewDefinition parks in a Review state carrying task templates until a
// context flag approves the transition out.
func reviewDefinition(templates ...models.TaskTemplate) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name: "document-review",
		States: []models.WorkflowState{
			{Name: "Review", Type: models.StateTypeHuman, Tasks: templates},
			{Name: "Approved", IsFinal: true},
		},
		Transitions: []models.WorkflowTransition{
			{From: "Review", To: "Approved", Condition: &models.Condition{Expression: "approved == true"}},
		},
		InitialState: "Review",
	}
}

func TestNewEngine(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.NotNil(t, engine)
	assert.NotNil(t, engine.persistence)
	assert.NotNil(t, engine.dispatcher)
}

func TestEngine_RegisterWorkflow(t *testing.T) {
	ctx := context.Background()
	engine, publisher := newTestEngine(t)

	def := twoStateDefinition()

	id, err := engine.RegisterWorkflow(ctx, def)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, err := engine.GetWorkflowDefinition(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "order-processing", stored.Name)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, models.DefinitionStatusActive, stored.Status)
	assert.False(t, stored.CreatedAt.IsZero())

	registered := publisher.byType(events.WorkflowRegisteredEvent)
	require.Len(t, registered, 1)
	assert.Equal(t, "order-processing", registered[0].(events.WorkflowRegistered).Name)
}

func TestEngine_RegisterWorkflow_KeepsSuppliedID(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	def := twoStateDefinition()
	def.ID = "wf-fixed"
	def.Version = 3

	id, err := engine.RegisterWorkflow(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, "wf-fixed", id)

	stored, err := engine.GetWorkflowDefinition(ctx, "wf-fixed")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)
}

func TestEngine_RegisterWorkflow_Validation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	tests := []struct {
		name   string
		mutate func(*models.WorkflowDefinition)
	}{
		{
			name:   "missing name",
			mutate: func(d *models.WorkflowDefinition) { d.Name = "  " },
		},
		{
			name:   "no states",
			mutate: func(d *models.WorkflowDefinition) { d.States = nil },
		},
		{
			name:   "initial state not a state",
			mutate: func(d *models.WorkflowDefinition) { d.InitialState = "Missing" },
		},
		{
			name: "transition from unknown state",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions = []models.WorkflowTransition{{From: "Nowhere", To: "End"}}
			},
		},
		{
			name: "transition to unknown state",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions = []models.WorkflowTransition{{From: "Start", To: "Nowhere"}}
			},
		},
		{
			name: "duplicate state names",
			mutate: func(d *models.WorkflowDefinition) {
				d.States = append(d.States, models.WorkflowState{Name: "Start"})
			},
		},
		{
			name: "unregistered hook kind",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[0].Entry = &models.HookSpec{Kind: "no-such-hook"}
			},
		},
		{
			name: "hook configuration fails schema",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[0].Entry = &models.HookSpec{Kind: "log", Configuration: map[string]any{"message": 42}}
			},
		},
		{
			name: "unregistered predicate kind",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions[0].Condition = &models.Condition{Kind: "no-such-predicate"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := twoStateDefinition()
			tt.mutate(def)

			_, err := engine.RegisterWorkflow(ctx, def)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected ValidationError, got %v", err)
		})
	}
}

func TestEngine_StartWorkflow_UnknownDefinition(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.StartWorkflow(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestEngine_StartWorkflow_InactiveDefinition(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	def := twoStateDefinition()
	def.ID = "wf-deprecated"
	def.Status = models.DefinitionStatusDeprecated
	def.CreatedAt = time.Now().UTC()

	require.NoError(t, engine.persistence.Definitions().Save(ctx, def))

	_, err := engine.StartWorkflow(ctx, "wf-deprecated", nil, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestEngine_SuspendAndResume(t *testing.T) {
	ctx := context.Background()
	engine, publisher := newTestEngine(t)

	id, err := engine.RegisterWorkflow(ctx, reviewDefinition())
	require.NoError(t, err)

	instanceID, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	require.NoError(t, engine.SuspendWorkflow(ctx, instanceID))

	instance, err := engine.GetWorkflowInstance(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusSuspended, instance.Status)

	// Suspending again is a no-op.
	require.NoError(t, engine.SuspendWorkflow(ctx, instanceID))

	require.NoError(t, engine.ResumeWorkflow(ctx, instanceID))
	engine.Wait()

	instance, err = engine.GetWorkflowInstance(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRunning, instance.Status)

	assert.Len(t, publisher.byType(events.WorkflowSuspendedEvent), 1)
	assert.Len(t, publisher.byType(events.WorkflowResumedEvent), 1)
}

func TestEngine_ResumeWorkflow_NotSuspended(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	id, err := engine.RegisterWorkflow(ctx, reviewDefinition())
	require.NoError(t, err)

	instanceID, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	err = engine.ResumeWorkflow(ctx, instanceID)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestEngine_CancelWorkflow_CascadesPendingTasks(t *testing.T) {
	ctx := context.Background()
	engine, publisher := newTestEngine(t)

	def := reviewDefinition(
		models.TaskTemplate{Name: "legal-review", AssignedTo: "alice"},
		models.TaskTemplate{Name: "finance-review", AssignedTo: "bob"},
	)

	id, err := engine.RegisterWorkflow(ctx, def)
	require.NoError(t, err)

	instanceID, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	require.NoError(t, engine.CancelWorkflow(ctx, instanceID))

	instance, err := engine.GetWorkflowInstance(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, instance.Status)
	require.NotNil(t, instance.CompletedAt)

	tasks, err := engine.persistence.Tasks().ListByInstance(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	for _, task := range tasks {
		assert.Equal(t, models.TaskStatusCancelled, task.Status)
	}

	cancelled := publisher.byType(events.WorkflowCancelledEvent)
	require.Len(t, cancelled, 1)
	assert.Equal(t, 2, cancelled[0].(events.WorkflowCancelled).TasksCancelled)
}

func TestEngine_CancelWorkflow_TerminalIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine, publisher := newTestEngine(t)

	id, err := engine.RegisterWorkflow(ctx, twoStateDefinition())
	require.NoError(t, err)

	instanceID, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	instance, err := engine.GetWorkflowInstance(ctx, instanceID)
	require.NoError(t, err)
	require.Equal(t, models.InstanceStatusCompleted, instance.Status)

	require.NoError(t, engine.CancelWorkflow(ctx, instanceID))

	instance, err = engine.GetWorkflowInstance(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Empty(t, publisher.byType(events.WorkflowCancelledEvent))
}

func TestEngine_CancelWorkflow_LeavesOtherInstancesAlone(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	id, err := engine.RegisterWorkflow(ctx, reviewDefinition(models.TaskTemplate{Name: "review"}))
	require.NoError(t, err)

	first, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)

	second, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	require.NoError(t, engine.CancelWorkflow(ctx, first))

	otherTasks, err := engine.persistence.Tasks().ListByInstance(ctx, second)
	require.NoError(t, err)
	require.Len(t, otherTasks, 1)
	assert.Equal(t, models.TaskStatusPending, otherTasks[0].Status)
}

func TestEngine_Variables(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	id, err := engine.RegisterWorkflow(ctx, reviewDefinition())
	require.NoError(t, err)

	instanceID, err := engine.StartWorkflow(ctx, id, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	require.NoError(t, engine.SetVariable(ctx, instanceID, "reviewer", "alice"))

	value, ok, err := engine.GetVariable(ctx, instanceID, "reviewer")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", value)

	_, ok, err = engine.GetVariable(ctx, instanceID, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_GetWorkflowInstances_Filter(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	reviewID, err := engine.RegisterWorkflow(ctx, reviewDefinition())
	require.NoError(t, err)

	autoID, err := engine.RegisterWorkflow(ctx, twoStateDefinition())
	require.NoError(t, err)

	_, err = engine.StartWorkflow(ctx, reviewID, nil, nil)
	require.NoError(t, err)

	_, err = engine.StartWorkflow(ctx, autoID, nil, nil)
	require.NoError(t, err)
	engine.Wait()

	running, err := engine.GetWorkflowInstances(ctx, persistence.InstanceFilter{
		WorkflowID: reviewID,
		Status:     models.InstanceStatusRunning,
	})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, reviewID, running[0].WorkflowID)

	completed, err := engine.GetWorkflowInstances(ctx, persistence.InstanceFilter{
		WorkflowID: autoID,
		Status:     models.InstanceStatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, completed, 1)
}
