package interfaces

import "context"

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
