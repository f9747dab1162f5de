// Package dlq routes rejected events to the dead-letter stream. The
// stream is append-only: entries carry the raw event verbatim, the
// rejection reason, and an observation timestamp, and are never mutated
// or deleted by the pipeline.
package dlq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/transform"
)

// Router writes one rejected event at a time (streaming mode).
// WriteRaw handles payloads that never decoded into a RawEvent, so the
// entry keeps the broker bytes instead of a reconstructed struct.
type Router interface {
	Write(ctx context.Context, raw models.RawEvent, reason string) error
	WriteRaw(ctx context.Context, payload []byte, reason string) error
}

// NewEntry builds a dead-letter entry for a rejected raw event. The
// event payload is copied verbatim; the reason is recorded as given.
func NewEntry(raw models.RawEvent, reason string, observedAt time.Time) models.DeadLetterEntry {
	return models.DeadLetterEntry{
		ID:         uuid.New().String(),
		Event:      raw.JSON(),
		Reason:     reason,
		ObservedAt: observedAt.UTC(),
	}
}

// NewRawEntry builds a dead-letter entry from undecoded broker bytes.
// Valid JSON is embedded verbatim; anything else is preserved as a JSON
// string so the original bytes survive the trip through the entry.
func NewRawEntry(payload []byte, reason string, observedAt time.Time) models.DeadLetterEntry {
	event := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			quoted = []byte(`""`)
		}
		event = quoted
	}
	return models.DeadLetterEntry{
		ID:         uuid.New().String(),
		Event:      event,
		Reason:     reason,
		ObservedAt: observedAt.UTC(),
	}
}

// Partition applies the validation policy to a batch of raw events
// (bulk mode). Records passing validation are returned normalized;
// records failing it become dead-letter entries. The verdicts are
// identical to streaming mode for the same field values because both
// modes share the transformer.
func Partition(tr *transform.Transformer, events []models.RawEvent) ([]models.NormalizedEvent, []models.DeadLetterEntry) {
	accepted := make([]models.NormalizedEvent, 0, len(events))
	var dead []models.DeadLetterEntry

	for _, raw := range events {
		ev, err := tr.Transform(raw)
		if err != nil {
			dead = append(dead, NewEntry(raw, err.Error(), time.Now()))
			continue
		}
		accepted = append(accepted, *ev)
	}

	return accepted, dead
}

// MemoryRouter collects dead-letter entries in memory. Used by batch
// runs and tests; production streaming uses the JetStream router.
type MemoryRouter struct {
	mu      sync.Mutex
	entries []models.DeadLetterEntry
}

// NewMemoryRouter returns an empty in-memory router.
func NewMemoryRouter() *MemoryRouter {
	return &MemoryRouter{}
}

// Write appends a dead-letter entry for the given event.
func (r *MemoryRouter) Write(ctx context.Context, raw models.RawEvent, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, NewEntry(raw, reason, time.Now()))
	return nil
}

// WriteRaw appends a dead-letter entry for an undecodable payload.
func (r *MemoryRouter) WriteRaw(ctx context.Context, payload []byte, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, NewRawEntry(payload, reason, time.Now()))
	return nil
}

// Entries returns a copy of the collected entries.
func (r *MemoryRouter) Entries() []models.DeadLetterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DeadLetterEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
