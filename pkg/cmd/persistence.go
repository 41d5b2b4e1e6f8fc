package cmd

import (
	"fmt"
	"strings"

	"github.com/procflow/procflow/pkg/persistence"
	"github.com/procflow/procflow/pkg/persistence/memory"
	"github.com/procflow/procflow/pkg/persistence/redis"
)

// NewPersistence selects a store from a URL. "memory://" keeps everything
// in-process and volatile; "redis://..." keeps engine state in an external
// store that survives restarts.
func NewPersistence(databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "redis":
		p, err := redis.NewPersistenceFromURL(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create redis persistence: %w", err))
		}

		return p
	default:
		return memory.NewPersistence()
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}
