package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusSuspended InstanceStatus = "suspended"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether the status admits no further progress.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed || s == InstanceStatusCancelled
}

// HistoryAction is the kind of event a history entry records.
type HistoryAction string

const (
	HistoryActionEntry      HistoryAction = "entry"
	HistoryActionExit       HistoryAction = "exit"
	HistoryActionTransition HistoryAction = "transition"
)

// WorkflowHistoryEntry is an append-only record of a state entry, exit or
// transition. It is the instance's execution audit trail and is never edited.
type WorkflowHistoryEntry struct {
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Action    HistoryAction  `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// WorkflowInstance is one running or finished execution of a definition.
// It is owned by the lifecycle manager and mutated only through its operations.
type WorkflowInstance struct {
	ID           string                 `json:"id"`
	WorkflowID   string                 `json:"workflow_id"`
	Status       InstanceStatus         `json:"status"`
	Context      map[string]any         `json:"context,omitempty"`
	CurrentState string                 `json:"current_state"`
	History      []WorkflowHistoryEntry `json:"history"`
	Variables    map[string]any         `json:"variables,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// EnteredCurrentState reports whether the current state's entry logic has
// already run for this visit. The most recent history record decides: an entry
// record for the current state means the visit was entered; a transition into
// it means entry is still pending.
func (i *WorkflowInstance) EnteredCurrentState() bool {
	for n := len(i.History) - 1; n >= 0; n-- {
		rec := i.History[n]
		if rec.State != i.CurrentState {
			continue
		}

		switch rec.Action {
		case HistoryActionEntry:
			return true
		case HistoryActionTransition:
			return false
		case HistoryActionExit:
			// Exited on a self-transition; the pending visit was not entered yet.
			continue
		}
	}

	return false
}

// LastSeenAt returns the timestamp of the most recent history record for the
// named state, or false when the state was never touched. Transition timeouts
// are measured from this point.
func (i *WorkflowInstance) LastSeenAt(state string) (time.Time, bool) {
	for n := len(i.History) - 1; n >= 0; n-- {
		if i.History[n].State == state {
			return i.History[n].Timestamp, true
		}
	}

	return time.Time{}, false
}
