// Package models defines the core domain models for the workflow orchestration engine.
package models

import "time"

// DefinitionStatus represents the lifecycle state of a workflow definition.
type DefinitionStatus string

const (
	DefinitionStatusActive     DefinitionStatus = "active"     // Executable, instances may be started
	DefinitionStatusInactive   DefinitionStatus = "inactive"   // Registered but not executable
	DefinitionStatusDeprecated DefinitionStatus = "deprecated" // Kept for running instances only
	DefinitionStatusDraft      DefinitionStatus = "draft"      // Editable, not executable
)

// StateType tags a state with the kind of work performed while an instance sits in it.
type StateType string

const (
	StateTypeHuman     StateType = "human"
	StateTypeAutomated StateType = "automated"
	StateTypeSystem    StateType = "system"
	StateTypeApproval  StateType = "approval"
)

// WorkflowDefinition is a named, versioned template of states and guarded
// transitions. Definitions are immutable after registration.
type WorkflowDefinition struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"          validate:"required,min=3"`
	Version      int                  `json:"version"`
	States       []WorkflowState      `json:"states"        validate:"required,min=1,dive"`
	Transitions  []WorkflowTransition `json:"transitions,omitempty"`
	InitialState string               `json:"initial_state" validate:"required"`
	Status       DefinitionStatus     `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
}

// StateByName returns the state with the given name, or false when the
// definition has no such state.
func (d *WorkflowDefinition) StateByName(name string) (WorkflowState, bool) {
	for _, s := range d.States {
		if s.Name == name {
			return s, true
		}
	}

	return WorkflowState{}, false
}

// WorkflowState is a named point in a definition's graph.
type WorkflowState struct {
	Name    string         `json:"name" validate:"required"`
	Type    StateType      `json:"type,omitempty"`
	IsFinal bool           `json:"is_final"`
	Entry   *HookSpec      `json:"entry,omitempty"`
	Exit    *HookSpec      `json:"exit,omitempty"`
	Action  *HookSpec      `json:"action,omitempty"`
	Tasks   []TaskTemplate `json:"tasks,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty"`
}

// WorkflowTransition is a rule for moving an instance between two states,
// guarded by an optional condition and/or an elapsed-time timeout.
type WorkflowTransition struct {
	From      string        `json:"from" validate:"required"`
	To        string        `json:"to"   validate:"required"`
	Condition *Condition    `json:"condition,omitempty"`
	Action    *HookSpec     `json:"action,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// TaskTemplate describes a task to be instantiated when an instance enters
// the owning state.
type TaskTemplate struct {
	Name       string         `json:"name" validate:"required"`
	Type       TaskType       `json:"type,omitempty"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	DueIn      time.Duration  `json:"due_in,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
