// Package messaging defines the broker-facing abstractions for the
// pipeline. Components publish and consume through these types without
// coupling to a specific broker implementation.
package messaging

import (
	"context"
	"time"
)

// Message is a single message received from or sent to the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs from message headers.
	Metadata map[string]string

	// Timestamp is when the message was received by this process.
	Timestamp time.Time

	// Deliveries is how many times the broker has delivered this
	// message, starting at 1. Redeliveries indicate earlier failures.
	Deliveries uint64
}

// MessageHandler processes one received message. Returning an error
// requests redelivery (negative acknowledgement); returning nil
// acknowledges the message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription listens to.
	Subject() string
}
