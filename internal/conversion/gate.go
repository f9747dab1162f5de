// Package conversion forwards completed orders to the external
// conversion-reporting endpoint. Orders pass a defaulting pre-pass
// first; the upload call then re-validates the same invariants as a
// last line of defense and fails only the individual record.
package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/timestamp"
)

// Outcome is the per-order result bucket of an upload run.
type Outcome string

const (
	OutcomeUploaded      Outcome = "uploaded"
	OutcomeFailed        Outcome = "upload-failed"
	OutcomeSkipped       Outcome = "skipped-invalid"
	OutcomeNotApplicable Outcome = "not-applicable"
)

// PlaceholderGclid is substituted when an order carries no click id.
// Recoverable: the upload proceeds and the substitution is logged.
const PlaceholderGclid = "ORDERFLOW_GCLID_PLACEHOLDER"

// DefaultCurrency is substituted for unsupported currency codes.
const DefaultCurrency = "USD"

// SupportedCurrency reports whether the endpoint accepts the code.
func SupportedCurrency(code string) bool {
	switch code {
	case "USD", "EUR", "GBP":
		return true
	default:
		return false
	}
}

// Uploader performs the actual upload of one conversion payload.
type Uploader interface {
	Upload(ctx context.Context, payload models.ConversionPayload) error
}

// Validate checks the invariants the endpoint enforces. Upload
// implementations call this themselves even though the gate's pre-pass
// already defaulted the fields: the upload is deliberately redundant
// and must not trust its caller.
func Validate(p models.ConversionPayload) error {
	if p.Gclid == "" {
		return fmt.Errorf("missing gclid")
	}
	if !SupportedCurrency(p.CurrencyCode) {
		return fmt.Errorf("invalid currency: %s", p.CurrencyCode)
	}
	if p.ConversionValue < 0 {
		return fmt.Errorf("negative conversion value")
	}
	return nil
}

// Gate validates, defaults, and uploads completed orders.
type Gate struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewGate returns a gate over the given uploader.
func NewGate(uploader Uploader) *Gate {
	return &Gate{
		uploader: uploader,
		logger:   slog.Default().With(slog.String("component", "conversion")),
	}
}

// Prepare builds the conversion payload for an order. It returns a new
// payload and never mutates the order. The second return value is false
// when the order must be skipped: negative amount, or an event_ts that
// is not a canonical timestamp. A missing gclid or unsupported currency
// is recoverable and defaulted.
func (g *Gate) Prepare(order models.AggregatedOrder) (models.ConversionPayload, bool) {
	// Amount is always present after normalization; only a negative
	// value (bad attribution join) invalidates the order here.
	if order.Amount < 0 {
		g.logger.Warn("skipping order with negative amount", logging.OrderID(order.OrderID))
		return models.ConversionPayload{}, false
	}
	if !timestamp.IsCanonical(order.EventTS) {
		g.logger.Warn("skipping order with unrecognized event timestamp",
			logging.OrderID(order.OrderID))
		return models.ConversionPayload{}, false
	}

	gclid := order.Gclid
	if gclid == "" {
		g.logger.Warn("order has no gclid, substituting placeholder",
			logging.OrderID(order.OrderID))
		gclid = PlaceholderGclid
	}

	currency := order.CurrencyCode
	if !SupportedCurrency(currency) {
		g.logger.Warn("unsupported currency, defaulting",
			logging.OrderID(order.OrderID),
			slog.String("currency", currency),
			slog.String("default", DefaultCurrency))
		currency = DefaultCurrency
	}

	return models.ConversionPayload{
		OrderID:            order.OrderID,
		Gclid:              gclid,
		ConversionAction:   models.ConversionAction,
		ConversionDateTime: order.EventTS,
		ConversionValue:    order.Amount,
		CurrencyCode:       currency,
	}, true
}

// Process uploads one order and returns its outcome bucket.
func (g *Gate) Process(ctx context.Context, order models.AggregatedOrder) Outcome {
	outcome := g.process(ctx, order)
	metrics.UploadsTotal.WithLabelValues(string(outcome)).Inc()
	g.logger.Debug("conversion processed",
		logging.OrderID(order.OrderID), logging.Outcome(string(outcome)))
	return outcome
}

func (g *Gate) process(ctx context.Context, order models.AggregatedOrder) Outcome {
	if order.Status != models.StatusCompleted {
		return OutcomeNotApplicable
	}

	payload, ok := g.Prepare(order)
	if !ok {
		return OutcomeSkipped
	}

	start := time.Now()
	err := g.uploader.Upload(ctx, payload)
	metrics.UploadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		g.logger.Error("conversion upload failed",
			logging.OrderID(order.OrderID), logging.Error(err))
		return OutcomeFailed
	}

	g.logger.Info("conversion uploaded", logging.OrderID(order.OrderID))
	return OutcomeUploaded
}

// Summary counts per-outcome results of a batch run.
type Summary struct {
	Uploaded      int
	Failed        int
	Skipped       int
	NotApplicable int
}

// Batch processes a collection of orders. A failing record never halts
// the rest of the batch.
func (g *Gate) Batch(ctx context.Context, orders []models.AggregatedOrder) Summary {
	var sum Summary
	for _, order := range orders {
		switch g.Process(ctx, order) {
		case OutcomeUploaded:
			sum.Uploaded++
		case OutcomeFailed:
			sum.Failed++
		case OutcomeSkipped:
			sum.Skipped++
		case OutcomeNotApplicable:
			sum.NotApplicable++
		}
	}

	g.logger.Info("conversion batch finished",
		slog.Int("uploaded", sum.Uploaded),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("not_applicable", sum.NotApplicable))

	return sum
}
