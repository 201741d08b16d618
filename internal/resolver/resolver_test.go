package resolver

import (
	"context"
	"testing"
)

func TestIdentityResolvesNameToItself(t *testing.T) {
	ids, err := Identity.Resolve(context.Background(), []string{"Boiler.Temperature", "Tank.Level"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(ids))
	}
	if ids[0].Id != "Boiler.Temperature" || ids[0].Name != "Boiler.Temperature" {
		t.Fatalf("expected identity mapping, got %+v", ids[0])
	}
}

func TestIdentityEmptyInputEmptyOutput(t *testing.T) {
	ids, err := Identity.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no identifiers for empty input, got %d", len(ids))
	}
}
