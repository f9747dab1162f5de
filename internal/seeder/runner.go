package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/common/messaging"
	natsclient "github.com/orderflow-systems/orderflow-pipeline/common/messaging/nats"
)

// Publisher delivers one generated event payload.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// JetStreamPublisher publishes events to the broker with
// acknowledgement.
type JetStreamPublisher struct {
	JS *natsclient.JetStreamClient
}

func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.JS.PublishSync(ctx, subject, data)
	return err
}

// WriterPublisher writes one JSON event per line. Used for dry runs and
// piping into other tools.
type WriterPublisher struct {
	W io.Writer
}

func (p *WriterPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := fmt.Fprintf(p.W, "%s\n", data)
	return err
}

// Summary reports a finished seeding run.
type Summary struct {
	Generated int
	Published int
	Failed    int
}

// Runner drives a generator into a publisher.
type Runner struct {
	gen    *Generator
	pub    Publisher
	logger *slog.Logger
}

// NewRunner returns a runner over the given publisher.
func NewRunner(gen *Generator, pub Publisher) *Runner {
	return &Runner{
		gen:    gen,
		pub:    pub,
		logger: slog.Default().With(slog.String("component", "seeder")),
	}
}

// Run generates and publishes profile.Count events, pausing
// profile.Interval between sends. Publish failures are counted and do
// not stop the run; context cancellation does.
func (r *Runner) Run(ctx context.Context, profile Profile) (Summary, error) {
	var sum Summary

	for i := 0; i < profile.Count; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		ev := r.gen.Next()
		sum.Generated++

		data, err := json.Marshal(ev)
		if err != nil {
			sum.Failed++
			continue
		}

		if err := r.pub.Publish(ctx, messaging.SubjectOrderEventsRaw, data); err != nil {
			sum.Failed++
			r.logger.Warn("publish failed", logging.Error(err))
			continue
		}
		sum.Published++

		if profile.Interval > 0 && i < profile.Count-1 {
			select {
			case <-time.After(profile.Interval.Std()):
			case <-ctx.Done():
				return sum, ctx.Err()
			}
		}
	}

	r.logger.Info("seeding finished",
		slog.Int("generated", sum.Generated),
		slog.Int("published", sum.Published),
		slog.Int("failed", sum.Failed))
	return sum, nil
}
