package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupInstallsProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), "127.0.0.1:4318", "ilp3-test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "span")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span from the sdk provider")
	}
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
