// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/procflow/procflow/pkg/models"

// RegisterWorkflowRequest represents the request body for registering a new
// workflow definition.
type RegisterWorkflowRequest struct {
	Name         string                      `json:"name"          validate:"required,min=3"`
	Version      int                         `json:"version,omitempty"`
	States       []models.WorkflowState      `json:"states"        validate:"required,min=1,dive"`
	Transitions  []models.WorkflowTransition `json:"transitions,omitempty"`
	InitialState string                      `json:"initial_state" validate:"required"`
}

// StartWorkflowRequest represents the request body for starting an instance.
type StartWorkflowRequest struct {
	Context map[string]any `json:"context,omitempty"`
	Session any            `json:"session,omitempty"`
}

// CompleteTaskRequest represents the request body for completing a task.
type CompleteTaskRequest struct {
	Result  map[string]any `json:"result,omitempty"`
	Session any            `json:"session,omitempty"`
}

// FailTaskRequest represents the request body for failing a task.
type FailTaskRequest struct {
	Error   string `json:"error" validate:"required"`
	Session any    `json:"session,omitempty"`
}

// ReassignTaskRequest represents the request body for reassigning a task.
type ReassignTaskRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required"`
}

// SetVariableRequest represents the request body for writing one instance variable.
type SetVariableRequest struct {
	Value any `json:"value"`
}
