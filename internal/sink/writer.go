// Package sink persists normalized events durably. A write is retried
// a fixed number of times with exponential backoff; exhausting the
// budget is fatal for that one record and is surfaced to the caller so
// the broker adapter can request redelivery.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// DefaultMaxAttempts is the total attempt budget per record.
const DefaultMaxAttempts = 3

// Store is the durable destination for normalized events.
type Store interface {
	Insert(ctx context.Context, ev models.NormalizedEvent) error
}

// FatalWriteError reports that a record could not be written within the
// attempt budget. It carries the record's order id and every attempt's
// error.
type FatalWriteError struct {
	OrderID  string
	Attempts []error
}

func (e *FatalWriteError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("write failed for order %s after %d attempts: %s",
		e.OrderID, len(e.Attempts), strings.Join(msgs, "; "))
}

// Unwrap exposes the per-attempt errors for errors.Is/As.
func (e *FatalWriteError) Unwrap() []error {
	return e.Attempts
}

// Writer wraps a Store with bounded retry. Attempt n failing sleeps
// 2^n backoff units before the next attempt; the final attempt's
// failure returns immediately as fatal.
type Writer struct {
	store       Store
	maxAttempts int
	unit        time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithBackoffUnit sets the backoff time unit (default one second).
func WithBackoffUnit(unit time.Duration) Option {
	return func(w *Writer) { w.unit = unit }
}

// WithSleep replaces the sleep function. Tests use this to record
// backoff waits instead of actually sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Writer) { w.sleep = sleep }
}

// NewWriter returns a writer over the given store.
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		unit:        time.Second,
		sleep:       sleepContext,
		logger:      slog.Default().With(slog.String("component", "sink")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write persists one record. On success it returns nil. After the
// attempt budget is exhausted it returns a *FatalWriteError; a context
// cancellation during backoff returns the context's error.
func (w *Writer) Write(ctx context.Context, ev models.NormalizedEvent) error {
	var attemptErrs []error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.store.Insert(ctx, ev)
		if err == nil {
			if attempt > 1 {
				w.logger.Info("write succeeded after retry",
					logging.OrderID(ev.OrderID), logging.Attempt(attempt))
			}
			return nil
		}

		attemptErrs = append(attemptErrs, err)
		w.logger.Error("write attempt failed",
			logging.OrderID(ev.OrderID), logging.Attempt(attempt), logging.Error(err))

		if attempt == w.maxAttempts {
			break
		}
		metrics.WriteRetriesTotal.Inc()

		// attempt 1 failure waits 2 units, attempt 2 waits 4, ...
		delay := w.unit * time.Duration(1<<attempt)
		if err := w.sleep(ctx, delay); err != nil {
			return fmt.Errorf("write aborted for order %s: %w", ev.OrderID, err)
		}
	}

	return &FatalWriteError{OrderID: ev.OrderID, Attempts: attemptErrs}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
