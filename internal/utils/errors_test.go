package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassificationThroughWrapping(t *testing.T) {
	err := fmt.Errorf("execute: %w", NewValidationError("n", "must be between 1 and 1000"))
	if !IsValidation(err) {
		t.Fatalf("expected wrapped validation error to classify")
	}
	var v *ValidationError
	if !errors.As(err, &v) || v.Field != "n" {
		t.Fatalf("expected field n, got %+v", v)
	}
	if IsStructural(err) || IsUnsupported(err) || IsConfiguration(err) {
		t.Fatalf("validation error misclassified")
	}
}

func TestUpstreamPlannerErrorUnwraps(t *testing.T) {
	base := errors.New("deadline exceeded")
	err := &UpstreamPlannerError{Reason: "transport", Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("expected upstream error to unwrap")
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError("accounts", "fetch page", errors.New("boom"))
	if err.Error() != "accounts: fetch page: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
