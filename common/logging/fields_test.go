package logging

import (
	"errors"
	"testing"
)

func TestService(t *testing.T) {
	attr := Service("consumer")
	if attr.Key != FieldService {
		t.Errorf("expected key %q, got %q", FieldService, attr.Key)
	}
	if attr.Value.String() != "consumer" {
		t.Errorf("expected value %q, got %q", "consumer", attr.Value.String())
	}
}

func TestOrderID(t *testing.T) {
	attr := OrderID("o-123")
	if attr.Key != FieldOrderID {
		t.Errorf("expected key %q, got %q", FieldOrderID, attr.Key)
	}
	if attr.Value.String() != "o-123" {
		t.Errorf("expected value %q, got %q", "o-123", attr.Value.String())
	}
}

func TestReason(t *testing.T) {
	attr := Reason("negative amount")
	if attr.Key != FieldReason {
		t.Errorf("expected key %q, got %q", FieldReason, attr.Key)
	}
	if attr.Value.String() != "negative amount" {
		t.Errorf("unexpected value %q", attr.Value.String())
	}
}

func TestAttempt(t *testing.T) {
	attr := Attempt(2)
	if attr.Key != FieldAttempt {
		t.Errorf("expected key %q, got %q", FieldAttempt, attr.Key)
	}
	if attr.Value.Int64() != 2 {
		t.Errorf("expected value 2, got %d", attr.Value.Int64())
	}
}

func TestError(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != FieldError {
		t.Errorf("expected key %q, got %q", FieldError, attr.Key)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("expected value %q, got %q", "boom", attr.Value.String())
	}
}

func TestErrorNil(t *testing.T) {
	attr := Error(nil)
	if attr.Value.String() != "" {
		t.Errorf("expected empty value, got %q", attr.Value.String())
	}
}
