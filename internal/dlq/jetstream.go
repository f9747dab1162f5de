package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/common/messaging"
	natsclient "github.com/orderflow-systems/orderflow-pipeline/common/messaging/nats"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// JetStreamRouter writes rejected events to the shared dead-letter
// stream. Safe for use across multiple consumer instances.
type JetStreamRouter struct {
	js      *natsclient.JetStreamClient
	stream  jetstream.Stream
	logger  *slog.Logger
	written uint64
}

// NewJetStreamRouter creates a router backed by the ORDERS_DLQ stream,
// creating the stream if it does not exist yet.
func NewJetStreamRouter(ctx context.Context, js *natsclient.JetStreamClient) (*JetStreamRouter, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, natsclient.OrdersDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &JetStreamRouter{
		js:     js,
		stream: stream,
		logger: slog.Default().With(slog.String("component", "dlq")),
	}, nil
}

// Write publishes a dead-letter entry for the rejected event.
// Subject format: orders.dlq.<reason-slug>
func (r *JetStreamRouter) Write(ctx context.Context, raw models.RawEvent, reason string) error {
	return r.publish(ctx, NewEntry(raw, reason, time.Now()), reason)
}

// WriteRaw publishes a dead-letter entry for a payload that never
// decoded, preserving the broker bytes verbatim.
func (r *JetStreamRouter) WriteRaw(ctx context.Context, payload []byte, reason string) error {
	return r.publish(ctx, NewRawEntry(payload, reason, time.Now()), reason)
}

func (r *JetStreamRouter) publish(ctx context.Context, entry models.DeadLetterEntry, reason string) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := messaging.DLQSubject(reason)
	if _, err := r.js.PublishSync(ctx, subject, data); err != nil {
		r.logger.Error("failed to publish dead-letter entry",
			logging.Subject(subject), logging.Error(err))
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&r.written, 1)
	r.logger.Info("dead-lettered event",
		logging.Subject(subject), logging.Reason(reason))

	return nil
}

// Stats returns dead-letter stream metrics.
func (r *JetStreamRouter) Stats(ctx context.Context) map[string]any {
	info, err := r.stream.Info(ctx)
	if err != nil {
		return map[string]any{
			"written_local": atomic.LoadUint64(&r.written),
			"error":         err.Error(),
		}
	}

	return map[string]any{
		"written_local":  atomic.LoadUint64(&r.written),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
		"first_seq":      info.State.FirstSeq,
		"last_seq":       info.State.LastSeq,
	}
}

// List returns dead-letter entries for offline inspection, newest
// limit entries from the head of the stream.
func (r *JetStreamRouter) List(ctx context.Context, limit int) ([]models.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	// Ephemeral consumer so listing never disturbs the stream state.
	consumer, err := r.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: messaging.SubjectOrderDLQAll,
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var entries []models.DeadLetterEntry
	for msg := range msgs.Messages() {
		var entry models.DeadLetterEntry
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			r.logger.Warn("skipping unparseable dead-letter message", logging.Error(err))
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
