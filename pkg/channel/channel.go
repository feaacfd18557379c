// Package channel defines the transport-neutral surface of the order event channel.
package channel

import "context"

// Message is a single keyed record on the channel. Key doubles as the partition
// or ordering key, so every message for one order is delivered in send order.
type Message struct {
	Key        string
	Value      []byte
	Attributes map[string]string
}

// Sender pushes one message and waits for the broker to accept it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes one delivered message. The returned error is reported but
// does not prevent the message from being acknowledged.
type Handler func(ctx context.Context, msg Message) error

// Source delivers messages to handler until ctx is canceled.
type Source interface {
	Receive(ctx context.Context, handler Handler) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls fn.
func (fn SenderFunc) Send(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}
