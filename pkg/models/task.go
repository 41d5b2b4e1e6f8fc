package models

import "time"

// TaskType classifies the kind of externally-performed work a task represents.
type TaskType string

const (
	TaskTypeApproval     TaskType = "approval"
	TaskTypeReview       TaskType = "review"
	TaskTypeValidation   TaskType = "validation"
	TaskTypeManual       TaskType = "manual"
	TaskTypeSystem       TaskType = "system"
	TaskTypeNotification TaskType = "notification"
	TaskTypeEscalation   TaskType = "escalation"
)

// TaskStatus represents the lifecycle state of a workflow task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusExpired    TaskStatus = "expired"
)

// Terminal reports whether the status admits no further transition.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusExpired:
		return true
	default:
		return false
	}
}

// TaskAssigneeAny is the wildcard assignee for pool assignment.
const TaskAssigneeAny = "*"

// WorkflowTask is a unit of externally-performed work created when an instance
// enters a state carrying task templates. Tasks are never deleted, only moved
// to a terminal status.
type WorkflowTask struct {
	ID          string         `json:"id"`
	InstanceID  string         `json:"instance_id"`
	WorkflowID  string         `json:"workflow_id"`
	Name        string         `json:"name"`
	Type        TaskType       `json:"type"`
	Status      TaskStatus     `json:"status"`
	AssignedTo  string         `json:"assigned_to"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	Priority    int            `json:"priority"`
	Data        map[string]any `json:"data,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
