package tracing

import (
	"context"
	"testing"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	tp, tracer, err := InitTracer(context.Background(), "freqtrade-mcp-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "unit")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span with a valid context")
	}
	span.End()
}

func TestExporterOptions(t *testing.T) {
	if got := len(exporterOptions("collector:4317")); got != 2 {
		t.Fatalf("expected endpoint + insecure options, got %d", got)
	}
	if got := len(exporterOptions("https://collector.example:4317")); got != 1 {
		t.Fatalf("expected tls endpoint url option only, got %d", got)
	}
	if got := len(exporterOptions("http://collector:4317")); got != 2 {
		t.Fatalf("expected endpoint url + insecure options, got %d", got)
	}
}
