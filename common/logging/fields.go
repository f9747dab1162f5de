package logging

import "log/slog"

// Common field names for consistent logging across components.
const (
	FieldService  = "service"
	FieldOrderID  = "order_id"
	FieldReason   = "reason"
	FieldSubject  = "subject"
	FieldStream   = "stream"
	FieldAttempt  = "attempt"
	FieldOutcome  = "outcome"
	FieldCount    = "count"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// OrderID returns a slog attribute for the order identifier.
func OrderID(id string) slog.Attr {
	return slog.String(FieldOrderID, id)
}

// Reason returns a slog attribute for a rejection reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Subject returns a slog attribute for a message bus subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Stream returns a slog attribute for a message bus stream name.
func Stream(name string) slog.Attr {
	return slog.String(FieldStream, name)
}

// Attempt returns a slog attribute for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Outcome returns a slog attribute for a per-record outcome bucket.
func Outcome(outcome string) slog.Attr {
	return slog.String(FieldOutcome, outcome)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error value.
// Safe to call with a nil error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
