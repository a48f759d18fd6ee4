package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/agicosmic/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), "test-service", otel.Config{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), "test-service", otel.Config{
		Endpoint: "http://localhost:4318",
		Enabled:  false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens.
	shutdown, err := otel.Setup(context.Background(), "test-service", otel.Config{
		Endpoint: "http://192.0.2.1:4318",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AGI_COSMIC_OTEL_ENDPOINT", "http://collector:4318")
	t.Setenv("AGI_COSMIC_OTEL_ENABLED", "false")

	cfg := otel.LoadConfigFromEnv()
	if cfg.Endpoint != "http://collector:4318" {
		t.Fatalf("expected endpoint from env, got %q", cfg.Endpoint)
	}
	if cfg.Enabled {
		t.Fatal("expected export disabled")
	}
}
