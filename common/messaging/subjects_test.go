package messaging

import "testing"

func TestDLQSubject(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"negative amount", "orders.dlq.negative-amount"},
		{"invalid or missing timestamp", "orders.dlq.invalid-or-missing-timestamp"},
		{"missing identifier", "orders.dlq.missing-identifier"},
		{"Weird  Reason!!", "orders.dlq.weird-reason"},
		{"", "orders.dlq.unknown"},
		{"---", "orders.dlq.unknown"},
	}

	for _, tt := range tests {
		if got := DLQSubject(tt.reason); got != tt.want {
			t.Errorf("DLQSubject(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
