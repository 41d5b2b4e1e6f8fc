package registry

import (
	"github.com/procflow/procflow/pkg/hooks/httprequest"
	log_hook "github.com/procflow/procflow/pkg/hooks/log"
	"github.com/procflow/procflow/pkg/hooks/setvar"
)

// RegisterBuiltins installs the hooks shipped with the engine.
func RegisterBuiltins(registry *Registry) {
	registry.RegisterHook(log_hook.NewHookFactory())
	registry.RegisterHook(setvar.NewHookFactory())
	registry.RegisterHook(httprequest.NewHookFactory())
}
