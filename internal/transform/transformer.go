// Package transform validates raw order events and converts them to the
// normalized store schema. Every event either becomes a NormalizedEvent
// or a rejection with a stable reason string; the transformer never
// panics out to its caller.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/timestamp"
)

// Rejection reason strings. These are the only reasons the transformer
// produces; the dead-letter router uses them as subject slugs, so keep
// them stable.
const (
	ReasonMissingID      = "missing identifier"
	ReasonInvalidAmount  = "invalid amount"
	ReasonNegativeAmount = "negative amount"
	ReasonBadTimestamp   = "invalid or missing timestamp"
)

// Rejection reports why a raw event cannot be normalized. It satisfies
// error so callers can thread it through ordinary error paths.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Transformer converts raw events to normalized events. The clock is
// injectable so the created_at defaulting rule is testable.
type Transformer struct {
	now func() time.Time
}

// New returns a transformer using the wall clock.
func New() *Transformer {
	return NewWithClock(time.Now)
}

// NewWithClock returns a transformer with the given clock.
func NewWithClock(now func() time.Time) *Transformer {
	return &Transformer{now: now}
}

// Transform validates a raw event and returns its normalized form, or a
// *Rejection naming the first rule the event failed. Validation stops at
// the first failure. An invalid status is not a failure: it is coerced
// to UNKNOWN. Unexpected internal faults are captured as rejections.
func (t *Transformer) Transform(raw models.RawEvent) (ev *models.NormalizedEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = &Rejection{Reason: fmt.Sprintf("transform fault: %v", r)}
		}
	}()

	orderID, ok := coerceID(raw.ID)
	if !ok {
		return nil, &Rejection{Reason: ReasonMissingID}
	}

	amount, ok := coerceAmount(raw.Amount)
	if !ok {
		return nil, &Rejection{Reason: ReasonInvalidAmount}
	}
	if amount < 0 {
		return nil, &Rejection{Reason: ReasonNegativeAmount}
	}

	status := CoerceStatus(raw.Status)

	eventTS, ok := timestamp.Normalize(raw.Timestamp)
	if !ok {
		return nil, &Rejection{Reason: ReasonBadTimestamp}
	}

	createdTS, ok := timestamp.Normalize(raw.CreatedAt)
	if !ok {
		// Missing or unparseable ingestion time is never a rejection
		// cause; substitute the current instant.
		createdTS = timestamp.Canonical(t.now())
	}

	return &models.NormalizedEvent{
		OrderID:   orderID,
		Status:    status,
		Amount:    amount,
		EventTS:   eventTS,
		CreatedTS: createdTS,
	}, nil
}

// CoerceStatus maps a raw status value onto the recognized set,
// case-insensitively. Anything else, including a missing status, maps
// to UNKNOWN rather than rejecting the event.
func CoerceStatus(v any) string {
	s, ok := v.(string)
	if !ok {
		return models.StatusUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case models.StatusCreated:
		return models.StatusCreated
	case models.StatusCompleted:
		return models.StatusCompleted
	case models.StatusCancelled:
		return models.StatusCancelled
	case models.StatusFailed:
		return models.StatusFailed
	default:
		return models.StatusUnknown
	}
}

func coerceID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return "", false
	}
}

func coerceAmount(v any) (float64, bool) {
	var f float64
	switch a := v.(type) {
	case float64:
		f = a
	case float32:
		f = float64(a)
	case int:
		f = float64(a)
	case int32:
		f = float64(a)
	case int64:
		f = float64(a)
	case json.Number:
		parsed, err := a.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
