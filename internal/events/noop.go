package events

import "context"

// NoopPublisher discards events. Used when GATEMAN_NATS_URL is not set;
// the in-process SSE hub still sees everything.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
