package seeder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/transform"
)

func TestGenerator_CleanProfileSurvivesTransform(t *testing.T) {
	p := DefaultProfile()
	p.Seed = 42
	p.Rates = RateConfig{} // no defects

	gen := NewGenerator(p)
	tr := transform.New()

	for _, ev := range gen.Batch(200) {
		data, err := json.Marshal(ev)
		require.NoError(t, err)

		var raw models.RawEvent
		require.NoError(t, json.Unmarshal(data, &raw))

		_, err = tr.Transform(raw)
		assert.NoError(t, err, "defect-free events always pass validation: %s", data)
	}
}

func TestGenerator_DefectRatesProduceRejections(t *testing.T) {
	p := DefaultProfile()
	p.Seed = 7
	p.Rates = RateConfig{InvalidTimestamp: 1.0}

	gen := NewGenerator(p)
	tr := transform.New()

	rejected := 0
	for _, ev := range gen.Batch(50) {
		data, _ := json.Marshal(ev)
		var raw models.RawEvent
		require.NoError(t, json.Unmarshal(data, &raw))
		if _, err := tr.Transform(raw); err != nil {
			rejected++
		}
	}
	assert.Equal(t, 50, rejected, "every event carries an unusable timestamp")
}

func TestGenerator_Reproducible(t *testing.T) {
	p := DefaultProfile()
	p.Seed = 99

	a := NewGenerator(p).Batch(20)
	b := NewGenerator(p).Batch(20)
	assert.Equal(t, a, b, "identical seeds generate identical traffic")
}

type capturePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestRunner_PublishesProfileCount(t *testing.T) {
	p := DefaultProfile()
	p.Count = 10
	p.Seed = 1

	pub := &capturePublisher{}
	sum, err := NewRunner(NewGenerator(p), pub).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, Summary{Generated: 10, Published: 10}, sum)
	require.Len(t, pub.payloads, 10)
	assert.Equal(t, "orders.events.raw", pub.subjects[0])

	var ev map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &ev))
	assert.Contains(t, ev, "id")
}

func TestRunner_ContextCancellation(t *testing.T) {
	p := DefaultProfile()
	p.Count = 1000
	p.Interval = Duration(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(NewGenerator(p), &capturePublisher{}).Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
count: 500
interval: 10ms
seed: 3
rates:
  invalid_timestamp: 0.2
`), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, p.Count)
	assert.Equal(t, 10*time.Millisecond, p.Interval.Std())
	assert.Equal(t, 0.2, p.Rates.InvalidTimestamp)
	// Unset rates keep their defaults.
	assert.Equal(t, DefaultProfile().Rates.MissingStatus, p.Rates.MissingStatus)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("count: -1\n"), 0644))
	_, err = LoadProfile(bad)
	assert.ErrorContains(t, err, "count must be positive")
}
