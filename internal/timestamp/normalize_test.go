package timestamp_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-systems/orderflow-pipeline/internal/timestamp"
)

func TestNormalize_SameInstantAllRepresentations(t *testing.T) {
	// 2025-09-01T13:00:00Z expressed every way a producer sends it.
	want := "2025-09-01T13:00:00Z"

	inputs := map[string]any{
		"time.Time UTC":     time.Date(2025, 9, 1, 13, 0, 0, 0, time.UTC),
		"time.Time offset":  time.Date(2025, 9, 1, 15, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		"iso with Z":        "2025-09-01T13:00:00Z",
		"iso with offset":   "2025-09-01T15:00:00+02:00",
		"iso naive":         "2025-09-01T13:00:00",
		"iso space":         "2025-09-01 13:00:00",
		"legacy dd/mm/yyyy": "01/09/2025 13:00:00",
		"epoch int":         1756731600,
		"epoch int64":       int64(1756731600),
		"epoch float":       1756731600.0,
		"epoch json.Number": json.Number("1756731600"),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, ok := timestamp.Normalize(in)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalize_DateOnly(t *testing.T) {
	got, ok := timestamp.Normalize("01/09/2025")
	require.True(t, ok)
	assert.Equal(t, "2025-09-01T00:00:00Z", got)

	got, ok = timestamp.Normalize("2025-09-01")
	require.True(t, ok)
	assert.Equal(t, "2025-09-01T00:00:00Z", got)
}

func TestNormalize_SubSecondPrecision(t *testing.T) {
	got, ok := timestamp.Normalize("2025-09-01T13:00:00.250Z")
	require.True(t, ok)
	assert.Equal(t, "2025-09-01T13:00:00.25Z", got)

	got, ok = timestamp.Normalize(1756731600.5)
	require.True(t, ok)
	assert.Equal(t, "2025-09-01T13:00:00.5Z", got)
}

func TestNormalize_Unparseable(t *testing.T) {
	inputs := map[string]any{
		"nil":            nil,
		"empty string":   "",
		"garbage":        "INVALID_TIMESTAMP",
		"bad calendar":   "2025/99/99 99:99:99",
		"numeric string": "1756731600",
		"bool":           true,
		"map":            map[string]any{"t": 1},
		"zero time":      time.Time{},
		"huge epoch":     1e18,
		"nan":            float64NaN(),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, ok := timestamp.Normalize(in)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, timestamp.IsCanonical("2025-09-01T13:00:00Z"))
	assert.True(t, timestamp.IsCanonical("2025-09-01T13:00:00.25Z"))
	assert.False(t, timestamp.IsCanonical("2025-09-01T13:00:00+00:00"))
	assert.False(t, timestamp.IsCanonical("01/09/2025 13:00:00"))
	assert.False(t, timestamp.IsCanonical(""))
}

func TestCanonical_UsesLiteralZ(t *testing.T) {
	in := time.Date(2025, 10, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2025-10-01T17:00:00Z", timestamp.Canonical(in))
}

func float64NaN() float64 {
	var zero float64
	return zero / zero
}
