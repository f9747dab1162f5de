package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/orderflow-systems/orderflow-pipeline/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subjects are the subjects this stream captures.
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum total size of the stream.
	MaxBytes int64

	// MaxMsgs is the maximum number of messages in the stream.
	MaxMsgs int64

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType
}

// ConsumerConfig defines a durable JetStream consumer.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject filters which messages this consumer receives.
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts before giving up.
	MaxDeliver int

	// MaxAckPending is maximum unacknowledged messages.
	MaxAckPending int

	// NakDelay is how long the broker waits before redelivering a
	// negatively acknowledged message.
	NakDelay time.Duration
}

// Predefined stream configurations for the order pipeline.
var (
	// OrdersStream captures raw order lifecycle events from producers.
	// WorkQueue retention: each event is consumed by exactly one worker
	// in the queue group and removed once acknowledged.
	OrdersStream = StreamConfig{
		Name:      "ORDERS",
		Subjects:  []string{messaging.SubjectOrderEventsRaw},
		MaxAge:    24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxMsgs:   1000000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}

	// OrdersDLQStream preserves rejected events for offline inspection.
	// Limits retention: dead letters are never consumed destructively.
	OrdersDLQStream = StreamConfig{
		Name:      "ORDERS_DLQ",
		Subjects:  []string{messaging.SubjectOrderDLQAll},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  512 * 1024 * 1024, // 512MB
		MaxMsgs:   500000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
)

// DefaultConsumerConfig returns sensible defaults for a pipeline
// consumer. MaxDeliver bounds how often a permanently rejected event is
// redelivered before the broker gives up on it.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 100,
		NakDelay:      5 * time.Second,
	}
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer on the
// given stream.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	consumerCfg := jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}

	return consumer, nil
}

// PublishSync publishes a message and waits for the stream's
// acknowledgement.
func (c *JetStreamClient) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	return c.js.Publish(ctx, subject, data)
}

// Consume starts consuming messages from a durable consumer.
// A nil handler error acknowledges the message; an error negatively
// acknowledges it with the configured delay, requesting redelivery.
// The returned stop function halts consumption; in-flight handlers run
// to completion.
func (c *JetStreamClient) Consume(ctx context.Context, streamName string, cfg ConsumerConfig, handler messaging.MessageHandler) (func(), error) {
	consumer, err := c.CreateOrUpdateConsumer(ctx, streamName, cfg)
	if err != nil {
		return nil, err
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		m := &messaging.Message{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
		}

		if meta, err := msg.Metadata(); err == nil {
			m.Deliveries = meta.NumDelivered
		}

		if headers := msg.Headers(); headers != nil {
			m.Metadata = make(map[string]string)
			for k := range headers {
				m.Metadata[k] = headers.Get(k)
			}
		}

		if err := handler(consumeCtx, m); err != nil {
			_ = msg.NakWithDelay(cfg.NakDelay)
			return
		}

		_ = msg.Ack()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}
