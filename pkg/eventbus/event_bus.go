// Package eventbus provides the outbound event channel for engine lifecycle notifications.
package eventbus

import (
	"context"

	"github.com/procflow/procflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus carries every engine lifecycle event. The engine only requires the
// publisher half and must work correctly with zero subscribers.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
