// Package consumer wires the event pipeline to the broker: each
// delivered message is decoded, transformed, persisted, and folded into
// the latest-state view, with rejections routed to the dead letter
// stream.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/common/messaging"
	natsclient "github.com/orderflow-systems/orderflow-pipeline/common/messaging/nats"
	"github.com/orderflow-systems/orderflow-pipeline/internal/aggregate"
	"github.com/orderflow-systems/orderflow-pipeline/internal/dlq"
	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/sink"
	"github.com/orderflow-systems/orderflow-pipeline/internal/transform"
)

// Pipeline processes order events delivered by the broker. The handler
// acknowledges a message only after the event is transformed, written
// to the event store, and applied to the latest-state view. Rejected
// events are copied to the dead letter stream before the negative
// acknowledgement; the consumer's delivery limit bounds redelivery.
type Pipeline struct {
	transformer *transform.Transformer
	router      dlq.Router
	writer      *sink.Writer
	aggregator  *aggregate.Aggregator
	logger      *slog.Logger

	received    atomic.Int64
	transformed atomic.Int64
	rejected    atomic.Int64
	aggregated  atomic.Int64
}

// New returns a pipeline over the given collaborators.
func New(tr *transform.Transformer, router dlq.Router, writer *sink.Writer, agg *aggregate.Aggregator) *Pipeline {
	return &Pipeline{
		transformer: tr,
		router:      router,
		writer:      writer,
		aggregator:  agg,
		logger:      slog.Default().With(slog.String("component", "consumer")),
	}
}

// Handle is the broker message handler. A nil return acknowledges the
// message; an error requests redelivery.
func (p *Pipeline) Handle(ctx context.Context, msg *messaging.Message) error {
	p.received.Add(1)

	var raw models.RawEvent
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		// Undecodable payloads cannot be retried into success. Preserve
		// the bytes in the dead letter stream and drop the message.
		p.rejected.Add(1)
		metrics.EventsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		metrics.DeadLettersTotal.WithLabelValues("malformed-payload").Inc()
		p.logger.Warn("dropping undecodable message",
			logging.Subject(msg.Subject), logging.Error(err))
		if dlqErr := p.router.WriteRaw(ctx, msg.Data, "malformed payload"); dlqErr != nil {
			return fmt.Errorf("dead letter malformed payload: %w", dlqErr)
		}
		return fmt.Errorf("decode event: %w", err)
	}

	start := time.Now()
	ev, err := p.transformer.Transform(raw)
	metrics.TransformDuration.Observe(time.Since(start).Seconds())

	var rejection *transform.Rejection
	if errors.As(err, &rejection) {
		p.rejected.Add(1)
		metrics.EventsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		metrics.DeadLettersTotal.WithLabelValues(messaging.ReasonSlug(rejection.Reason)).Inc()
		p.logger.Warn("event rejected",
			slog.String("reason", rejection.Reason),
			slog.Uint64("deliveries", msg.Deliveries))
		if dlqErr := p.router.Write(ctx, raw, rejection.Reason); dlqErr != nil {
			return fmt.Errorf("dead letter event: %w", dlqErr)
		}
		return rejection
	}
	if err != nil {
		return fmt.Errorf("transform event: %w", err)
	}
	p.transformed.Add(1)

	writeStart := time.Now()
	err = p.writer.Write(ctx, *ev)
	metrics.WriteDuration.Observe(time.Since(writeStart).Seconds())

	var fatal *sink.FatalWriteError
	if errors.As(err, &fatal) {
		metrics.WriteFailuresTotal.Inc()
		metrics.EventsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		p.logger.Error("event store write exhausted retries",
			logging.OrderID(ev.OrderID), logging.Error(err))
		return err
	}
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	replaced, err := p.aggregator.Apply(ctx, *ev)
	if err != nil {
		return fmt.Errorf("apply event to order state: %w", err)
	}
	if replaced {
		metrics.StateReplacements.Inc()
	} else {
		metrics.StaleEventsTotal.Inc()
	}
	p.aggregated.Add(1)

	metrics.EventsTotal.WithLabelValues(metrics.OutcomeStored).Inc()
	p.logger.Debug("event stored",
		logging.OrderID(ev.OrderID),
		slog.String("status", ev.Status),
		slog.Bool("replaced_state", replaced))
	return nil
}

// Run subscribes the pipeline to the raw event subject and blocks until
// the context is cancelled. Streams and the durable consumer are
// created if missing.
func (p *Pipeline) Run(ctx context.Context, js *natsclient.JetStreamClient, consumerName string) error {
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.OrdersStream); err != nil {
		return fmt.Errorf("ensure orders stream: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.OrdersDLQStream); err != nil {
		return fmt.Errorf("ensure dead letter stream: %w", err)
	}

	cfg := natsclient.DefaultConsumerConfig(consumerName, messaging.SubjectOrderEventsRaw)
	stop, err := js.Consume(ctx, natsclient.OrdersStream.Name, cfg, p.Handle)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer stop()

	p.logger.Info("consumer running",
		logging.Stream(natsclient.OrdersStream.Name),
		logging.Subject(messaging.SubjectOrderEventsRaw))

	<-ctx.Done()

	// Final snapshot for the shutdown summary; also refreshes the
	// tracked-orders gauge.
	snapCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if snap, err := p.aggregator.Snapshot(snapCtx); err == nil {
		p.logger.Info("consumer stopping", logging.Count(len(snap)))
	} else {
		p.logger.Info("consumer stopping", logging.Error(err))
	}
	return nil
}

// Stats returns a point-in-time snapshot of the pipeline counters.
func (p *Pipeline) Stats() models.PipelineStats {
	return models.PipelineStats{
		Received:    p.received.Load(),
		Transformed: p.transformed.Load(),
		Rejected:    p.rejected.Load(),
		Aggregated:  p.aggregated.Load(),
	}
}
