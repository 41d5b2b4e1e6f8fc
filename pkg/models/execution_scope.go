package models

import "log/slog"

// ExecutionScope is the view of an instance handed to hooks and conditions.
// Context and Variables alias the instance's live maps for the duration of a
// loop pass; hooks may read and write both.
type ExecutionScope struct {
	InstanceID   string         `json:"instance_id"`
	WorkflowID   string         `json:"workflow_id"`
	CurrentState string         `json:"current_state"`
	Context      map[string]any `json:"context,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`

	// Session is the opaque identity value threaded through the operation
	// that triggered this pass. The engine never inspects it.
	Session any `json:"-"`

	Logger *slog.Logger `json:"-"`
}

// WithLogger returns a copy of the scope carrying the given logger.
func (s *ExecutionScope) WithLogger(logger *slog.Logger) *ExecutionScope {
	clone := *s
	clone.Logger = logger

	return &clone
}
