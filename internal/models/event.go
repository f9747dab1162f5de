package models

import (
	"encoding/json"
	"time"
)

// Order lifecycle statuses. Anything outside this set is coerced to
// StatusUnknown during transformation.
const (
	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
	StatusUnknown   = "UNKNOWN"
)

// RawEvent is an order lifecycle event as delivered by the broker.
// Field types are deliberately loose: producers disagree on how they
// encode amounts and timestamps, and some omit fields entirely.
type RawEvent struct {
	ID        any `json:"id"`
	Status    any `json:"status"`
	Amount    any `json:"amount"`
	Timestamp any `json:"timestamp"`
	CreatedAt any `json:"created_at"`
}

// JSON serializes the event back to its wire shape. Used when a raw
// event has to be copied verbatim into the dead-letter stream.
func (e RawEvent) JSON() json.RawMessage {
	data, err := json.Marshal(e)
	if err != nil {
		// Marshal of a map-shaped struct cannot fail for JSON-decoded
		// input; guard anyway so DLQ writes never drop the record.
		return json.RawMessage(`{}`)
	}
	return data
}

// NormalizedEvent is the canonical representation written to the event
// store. EventTS and CreatedTS are RFC3339 UTC strings with a literal Z
// suffix; Amount is always >= 0.
type NormalizedEvent struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	EventTS   string  `json:"event_ts"`
	CreatedTS string  `json:"created_ts"`
}

// DeadLetterEntry preserves a rejected event together with the reason it
// was rejected. Entries are append-only; nothing in the pipeline mutates
// or deletes them.
type DeadLetterEntry struct {
	ID         string          `json:"id"`
	Event      json.RawMessage `json:"event"`
	Reason     string          `json:"reason"`
	ObservedAt time.Time       `json:"observed_at"`
}

// AggregatedOrder is the current state of one order: the normalized
// event with the greatest event_ts seen for that order id. Gclid and
// CurrencyCode are attribution fields joined in from the store; they are
// absent on events and only matter to the conversion upload gate.
type AggregatedOrder struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	EventTS      string  `json:"event_ts"`
	CreatedTS    string  `json:"created_ts"`
	Gclid        string  `json:"gclid,omitempty"`
	CurrencyCode string  `json:"currency_code,omitempty"`
}

// Event returns the normalized event carried by the aggregated order.
func (o AggregatedOrder) Event() NormalizedEvent {
	return NormalizedEvent{
		OrderID:   o.OrderID,
		Status:    o.Status,
		Amount:    o.Amount,
		EventTS:   o.EventTS,
		CreatedTS: o.CreatedTS,
	}
}

// FromEvent builds an aggregated order from a normalized event, keeping
// any attribution fields already present on the receiver.
func (o AggregatedOrder) FromEvent(ev NormalizedEvent) AggregatedOrder {
	o.OrderID = ev.OrderID
	o.Status = ev.Status
	o.Amount = ev.Amount
	o.EventTS = ev.EventTS
	o.CreatedTS = ev.CreatedTS
	return o
}

// ConversionPayload is the shape sent to the external conversion
// endpoint. Built fresh per upload attempt and never persisted.
type ConversionPayload struct {
	OrderID            string  `json:"order_id"`
	Gclid              string  `json:"gclid"`
	ConversionAction   string  `json:"conversion_action"`
	ConversionDateTime string  `json:"conversion_date_time"`
	ConversionValue    float64 `json:"conversion_value"`
	CurrencyCode       string  `json:"currency_code"`
}

// ConversionAction is the only action this pipeline reports.
const ConversionAction = "ORDER_COMPLETED"

// PipelineStats accumulates per-outcome counts for an end-of-run
// summary. Not safe for concurrent use; each run owns its own copy.
type PipelineStats struct {
	Received      int64 `json:"received"`
	Transformed   int64 `json:"transformed"`
	Rejected      int64 `json:"rejected"`
	Aggregated    int64 `json:"aggregated"`
	Uploaded      int64 `json:"uploaded"`
	UploadFailed  int64 `json:"upload_failed"`
	Skipped       int64 `json:"skipped"`
	NotApplicable int64 `json:"not_applicable"`
}
