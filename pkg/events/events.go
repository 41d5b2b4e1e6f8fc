// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/pkg/models"
)

type EventType string

// Topic is the single stream every lifecycle event is published to.
const Topic = "procflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Definition lifecycle.
	WorkflowRegisteredEvent EventType = "workflow.registered"

	// Instance lifecycle.
	WorkflowStateEnteredEvent EventType = "workflow.state.entered"
	WorkflowCompletedEvent    EventType = "workflow.completed"
	WorkflowErrorEvent        EventType = "workflow.error"
	WorkflowSuspendedEvent    EventType = "workflow.suspended"
	WorkflowResumedEvent      EventType = "workflow.resumed"
	WorkflowCancelledEvent    EventType = "workflow.cancelled"

	// Task lifecycle.
	TaskCreatedEvent    EventType = "task.created"
	TaskCompletedEvent  EventType = "task.completed"
	TaskFailedEvent     EventType = "task.failed"
	TaskReassignedEvent EventType = "task.reassigned"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowRegistered struct {
	BaseEvent

	Name    string `json:"name"`
	Version int    `json:"version"`
}

func (e WorkflowRegistered) GetType() EventType {
	return WorkflowRegisteredEvent
}

type WorkflowStateEntered struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
}

func (e WorkflowStateEntered) GetType() EventType {
	return WorkflowStateEnteredEvent
}

type WorkflowCompleted struct {
	BaseEvent

	InstanceID string        `json:"instance_id"`
	FinalState string        `json:"final_state"`
	Duration   time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowError struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
	Error      string `json:"error"`
}

func (e WorkflowError) GetType() EventType {
	return WorkflowErrorEvent
}

type WorkflowSuspended struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
}

func (e WorkflowSuspended) GetType() EventType {
	return WorkflowSuspendedEvent
}

type WorkflowResumed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
}

func (e WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	InstanceID     string `json:"instance_id"`
	State          string `json:"state"`
	TasksCancelled int    `json:"tasks_cancelled"`
}

func (e WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type TaskCreated struct {
	BaseEvent

	InstanceID string          `json:"instance_id"`
	TaskID     string          `json:"task_id"`
	Name       string          `json:"name"`
	TaskType   models.TaskType `json:"task_type"`
	AssignedTo string          `json:"assigned_to"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

type TaskCompleted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	TaskID     string         `json:"task_id"`
	Result     map[string]any `json:"result,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type TaskFailed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	TaskID     string `json:"task_id"`
	Error      string `json:"error"`
}

func (e TaskFailed) GetType() EventType {
	return TaskFailedEvent
}

type TaskReassigned struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	TaskID     string `json:"task_id"`
	AssignedTo string `json:"assigned_to"`
}

func (e TaskReassigned) GetType() EventType {
	return TaskReassignedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
