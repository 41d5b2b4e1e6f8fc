package models

// Condition guards a transition. An empty condition always passes. A condition
// with a Kind is resolved through the hook registry as a registered predicate;
// otherwise Expression is evaluated by the simple interpreter against the
// instance context.
type Condition struct {
	Kind          string         `json:"kind,omitempty"`
	Expression    string         `json:"expression,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Empty reports whether the condition places no constraint on the transition.
func (c *Condition) Empty() bool {
	return c == nil || (c.Kind == "" && c.Expression == "")
}
