package serviceerror

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundKeepsKindAndCode(t *testing.T) {
	err := NotFound("catalog.category_images", "category_not_found", "category %d", 42)

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound in chain: %v", err)
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Fatalf("not-found error must not match invalid input")
	}
	if code := CodeOf(err); code != "catalog.category_images.category_not_found" {
		t.Fatalf("unexpected code %q", code)
	}
	if err.Error() != "catalog.category_images.category_not_found: not found: category 42" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCodeOfWrappedError(t *testing.T) {
	inner := Invalid("printing.submit", "invalid_copies", "copies must be between 1 and 10")
	wrapped := fmt.Errorf("handler: %w", inner)

	if CodeOf(wrapped) != "printing.submit.invalid_copies" {
		t.Fatalf("expected code through wrapping, got %q", CodeOf(wrapped))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}
