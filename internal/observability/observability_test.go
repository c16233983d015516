package observability

import (
	"context"
	"testing"
	"time"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, Config{
		Endpoint:    "localhost:4318",
		ServiceName: "diet-tracker-test",
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}

	// No spans were recorded, so flushing must finish quickly even with no
	// collector listening.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_DefaultsEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
}
