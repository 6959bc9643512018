package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("test-service")

	if config.ServiceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got '%s'", config.ServiceName)
	}

	if config.ServiceVersion == "" {
		t.Error("Service version should not be empty")
	}

	if config.CollectorEndpoint == "" {
		t.Error("Collector endpoint should not be empty")
	}

	if config.SamplingRate < 0.0 || config.SamplingRate > 1.0 {
		t.Errorf("Sampling rate out of bounds: %.2f", config.SamplingRate)
	}
}

func TestAuditAttributes(t *testing.T) {
	attrs := AuditAttributes("audit-123", 42, 0.68, true, 2000)

	if len(attrs) != 5 {
		t.Errorf("Expected 5 attributes, got %d", len(attrs))
	}

	found := false
	for _, attr := range attrs {
		if attr.Key == AttrAuditSeed && attr.Value.AsInt64() == 42 {
			found = true
			break
		}
	}
	if !found {
		t.Error("seed attribute not found")
	}
}

func TestGroupAttributes(t *testing.T) {
	attrs := GroupAttributes("Asian", 12, 300, 2000)

	if len(attrs) != 4 {
		t.Errorf("Expected 4 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != AttrGroup || attrs[0].Value.AsString() != "Asian" {
		t.Errorf("first attribute = %v, want group", attrs[0])
	}
}

func TestEmbedAttributes(t *testing.T) {
	// With backend
	attrs := EmbedAttributes("a.jpg", false, "opencv")
	if len(attrs) != 3 {
		t.Errorf("Expected 3 attributes with backend, got %d", len(attrs))
	}

	// Without backend
	attrs = EmbedAttributes("a.jpg", false, "")
	if len(attrs) != 2 {
		t.Errorf("Expected 2 attributes without backend, got %d", len(attrs))
	}
}

func TestLookupAttributes(t *testing.T) {
	attrs := LookupAttributes(true, 1500*time.Microsecond)

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != AttrEmbedCacheHit || !attrs[0].Value.AsBool() {
		t.Errorf("cache hit attribute = %v", attrs[0])
	}
	if attrs[1].Key != AttrLatencyMs || attrs[1].Value.AsFloat64() != 1.5 {
		t.Errorf("latency attribute = %v, want 1.5ms", attrs[1])
	}
}

func TestScoreAttributes(t *testing.T) {
	attrs := ScoreAttributes(81, 93)

	if len(attrs) != 2 {
		t.Errorf("Expected 2 attributes, got %d", len(attrs))
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// This will use the global no-op tracer since we haven't initialized OTel
	ctx, span := StartSpan(ctx, "test-tracer", "test-span",
		attribute.String("test.key", "test.value"),
	)

	if ctx == nil {
		t.Error("Context should not be nil")
	}

	if span == nil {
		t.Error("Span should not be nil")
	}

	span.End()
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "test-tracer", "test-span")

	// Should not panic
	RecordError(span, nil, "")
	RecordError(span, nil, "test message")

	span.End()
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "test-tracer", "test-span")

	// Should not panic
	AddEvent(span, "test-event")
	AddEvent(span, "test-event-with-attrs",
		attribute.String("key", "value"),
	)

	span.End()
}
