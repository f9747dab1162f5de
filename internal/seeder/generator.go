// Package seeder generates synthetic order events for load and
// pipeline testing. Generated traffic deliberately includes the defects
// the pipeline has to survive: mixed timestamp encodings, missing
// fields, and negative amounts.
package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator produces raw order events as wire-shaped maps. A fixed seed
// makes runs reproducible.
type Generator struct {
	rng   *rand.Rand
	faker *gofakeit.Faker
	rates RateConfig
	now   func() time.Time
}

// NewGenerator returns a generator for the given profile. Seed 0 means
// a time-based seed.
func NewGenerator(p Profile) *Generator {
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		faker: gofakeit.NewUnlocked(seed),
		rates: p.Rates,
		now:   time.Now,
	}
}

var statuses = []string{"CREATED", "COMPLETED", "CANCELLED", "FAILED", "completed", "Created"}

// Next generates one raw event. The map is the wire shape: values use
// the encodings real producers send, including the ones the pipeline
// has to reject.
func (g *Generator) Next() map[string]any {
	ev := map[string]any{
		"id": fmt.Sprintf("order-%s", g.faker.UUID()),
	}

	if !g.hit(g.rates.MissingStatus) {
		ev["status"] = statuses[g.rng.Intn(len(statuses))]
	}

	switch {
	case g.hit(g.rates.MissingAmount):
		// absent amount
	case g.hit(g.rates.NegativeAmount):
		ev["amount"] = -g.faker.Price(1, 500)
	default:
		ev["amount"] = g.amountValue()
	}

	ev["timestamp"] = g.timestampValue()

	if !g.hit(g.rates.MissingCreatedAt) {
		ev["created_at"] = g.now().UTC().Add(-time.Duration(g.rng.Intn(60)) * time.Second).Format(time.RFC3339)
	}

	return ev
}

// Batch generates n events.
func (g *Generator) Batch(n int) []map[string]any {
	events := make([]map[string]any, n)
	for i := range events {
		events[i] = g.Next()
	}
	return events
}

// amountValue picks one of the encodings producers actually use.
func (g *Generator) amountValue() any {
	price := g.faker.Price(1, 500)
	switch g.rng.Intn(3) {
	case 0:
		return price
	case 1:
		return fmt.Sprintf("%.2f", price)
	default:
		return int(price)
	}
}

// timestampValue picks a timestamp encoding. The invalid-rate branch
// emits strings no parser accepts.
func (g *Generator) timestampValue() any {
	if g.hit(g.rates.InvalidTimestamp) {
		invalid := []any{"not-a-date", "", "99/99/9999", nil}
		return invalid[g.rng.Intn(len(invalid))]
	}

	ts := g.now().UTC().Add(-time.Duration(g.rng.Intn(3600)) * time.Second)
	switch g.rng.Intn(4) {
	case 0:
		return ts.Format(time.RFC3339)
	case 1:
		return ts.Format("2006-01-02 15:04:05")
	case 2:
		return ts.Format("02/01/2006 15:04:05")
	default:
		return ts.Unix()
	}
}

func (g *Generator) hit(rate float64) bool {
	return rate > 0 && g.rng.Float64() < rate
}
