package models

// HookSpec names a registered hook and carries its configuration. Hooks are
// stored as references resolved through the hook registry at execution time,
// never as raw function values, so definitions stay serializable.
type HookSpec struct {
	Kind          string         `json:"kind" validate:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
}
