package messaging

import "context"

// Publisher defines an interface for publishing domain events.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber delivers raw event payloads from a topic to a handler.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, payload []byte) error) error
}

// Fanout publishes every event to each wrapped publisher. A failing
// publisher does not stop the others; the first error is returned.
type Fanout []Publisher

func (f Fanout) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	var firstErr error
	for _, p := range f {
		if err := p.PublishEvent(ctx, topic, key, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
