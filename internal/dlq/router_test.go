package dlq_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-systems/orderflow-pipeline/internal/dlq"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/transform"
)

func TestMemoryRouter_Write(t *testing.T) {
	router := dlq.NewMemoryRouter()

	raw := models.RawEvent{ID: "o1", Amount: -5, Timestamp: "2025-10-01T12:00:00Z"}
	err := router.Write(context.Background(), raw, transform.ReasonNegativeAmount)
	require.NoError(t, err)

	entries := router.Entries()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, transform.ReasonNegativeAmount, entry.Reason)
	assert.WithinDuration(t, time.Now(), entry.ObservedAt, 5*time.Second)

	// The rejected event is preserved verbatim.
	var decoded models.RawEvent
	require.NoError(t, json.Unmarshal(entry.Event, &decoded))
	assert.Equal(t, "o1", decoded.ID)
	assert.Equal(t, float64(-5), decoded.Amount)
}

func TestNewRawEntry_PreservesBytes(t *testing.T) {
	now := time.Now()

	valid := dlq.NewRawEntry([]byte(`[1,2,3]`), "malformed payload", now)
	assert.Equal(t, json.RawMessage(`[1,2,3]`), valid.Event,
		"valid JSON is embedded unchanged")

	invalid := dlq.NewRawEntry([]byte(`{not json`), "malformed payload", now)
	assert.True(t, json.Valid(invalid.Event), "entry stays marshalable")
	var original string
	require.NoError(t, json.Unmarshal(invalid.Event, &original))
	assert.Equal(t, `{not json`, original, "original bytes recoverable")
}

func TestMemoryRouter_WriteRaw(t *testing.T) {
	router := dlq.NewMemoryRouter()

	err := router.WriteRaw(context.Background(), []byte(`[1,2,3]`), "malformed payload")
	require.NoError(t, err)

	entries := router.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, json.RawMessage(`[1,2,3]`), entries[0].Event)
	assert.Equal(t, "malformed payload", entries[0].Reason)
}

func TestMemoryRouter_CancelledContext(t *testing.T) {
	router := dlq.NewMemoryRouter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := router.Write(ctx, models.RawEvent{ID: "o1"}, "reason")
	assert.Error(t, err)
	assert.Empty(t, router.Entries())
}

func TestPartition_MatchesStreamingVerdicts(t *testing.T) {
	tr := transform.New()

	batch := []models.RawEvent{
		{ID: "ok-1", Status: "completed", Amount: 10, Timestamp: "2025-10-01T12:00:00Z"},
		{ID: "bad-amount", Amount: "NaN?", Timestamp: "2025-10-01T12:00:00Z"},
		{ID: "negative", Amount: -1, Timestamp: "2025-10-01T12:00:00Z"},
		{ID: "bad-ts", Amount: 3, Timestamp: "INVALID_TIMESTAMP"},
		{ID: "ok-2", Status: "shipped", Amount: 0, Timestamp: "01/09/2025 13:00:00"},
		{Amount: 5, Timestamp: "2025-10-01T12:00:00Z"}, // missing id
	}

	accepted, dead := dlq.Partition(tr, batch)

	require.Len(t, accepted, 2)
	assert.Equal(t, "ok-1", accepted[0].OrderID)
	assert.Equal(t, "ok-2", accepted[1].OrderID)
	assert.Equal(t, models.StatusUnknown, accepted[1].Status)

	require.Len(t, dead, 4)
	reasons := make([]string, 0, len(dead))
	for _, entry := range dead {
		reasons = append(reasons, entry.Reason)
	}
	assert.Equal(t, []string{
		transform.ReasonInvalidAmount,
		transform.ReasonNegativeAmount,
		transform.ReasonBadTimestamp,
		transform.ReasonMissingID,
	}, reasons)

	// Every record in the batch got exactly one verdict, and the same
	// verdict the streaming path would produce.
	assert.Equal(t, len(batch), len(accepted)+len(dead))
	for _, raw := range batch {
		_, streamErr := tr.Transform(raw)
		id, _ := raw.ID.(string)
		if streamErr == nil {
			assert.Contains(t, []string{"ok-1", "ok-2"}, id)
		}
	}
}
