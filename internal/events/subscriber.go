package events

// Message is one event as delivered to a subscriber: the concrete subject
// it was published on plus the raw JSON payload.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives run and gate events from the bus. Topics follow
// NATS wildcard rules, so "gateman.run.>" covers every run lifecycle event.
type Subscriber interface {
	// Subscribe delivers events on the returned channel. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
