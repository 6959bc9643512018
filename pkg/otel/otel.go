package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName          string
	ServiceVersion       string
	Environment          string
	CollectorEndpoint    string
	CollectorInsecure    bool
	SamplingRate         float64 // 0.0 to 1.0
	MaxEventsPerSpan     int
	MaxAttributesPerSpan int
}

// DefaultConfig returns defaults for a local collector
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:          serviceName,
		ServiceVersion:       "0.3.0",
		Environment:          "development",
		CollectorEndpoint:    "localhost:4317",
		CollectorInsecure:    true,
		SamplingRate:         1.0,
		MaxEventsPerSpan:     128,
		MaxAttributesPerSpan: 128,
	}
}

// InitTracer initializes OpenTelemetry tracing
func InitTracer(ctx context.Context, config *Config) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultConfig("fairaudit")
	}

	// Create OTLP exporter
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.CollectorEndpoint)}
	if config.CollectorInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	// Create resource with service information
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create tracer provider with sampling
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
		sdktrace.WithSpanLimits(sdktrace.SpanLimits{
			EventCountLimit:     config.MaxEventsPerSpan,
			AttributeCountLimit: config.MaxAttributesPerSpan,
		}),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	// Set global propagator for context propagation
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	// Use context with timeout for shutdown
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return tp.Shutdown(ctx)
}

// StartSpan is a convenience wrapper for starting a span with common attributes
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)

	// Add attributes if provided
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	return ctx, span
}

// RecordError records an error on a span with optional message
func RecordError(span trace.Span, err error, message string) {
	if span == nil || err == nil {
		return
	}

	if message != "" {
		span.RecordError(err, trace.WithAttributes(
			attribute.String("error.message", message),
		))
	} else {
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds an event to a span with optional attributes
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Attribute keys for audit spans
const (
	AttrAuditID         = attribute.Key("audit.id")
	AttrAuditSeed       = attribute.Key("audit.seed")
	AttrAuditThreshold  = attribute.Key("audit.threshold")
	AttrAuditPreprocess = attribute.Key("audit.preprocessing")
	AttrAuditMaxPairs   = attribute.Key("audit.max_pairs")
	AttrGroup           = attribute.Key("audit.group")
	AttrIdentities      = attribute.Key("audit.identities")
	AttrGenuinePairs    = attribute.Key("audit.pairs.genuine")
	AttrImpostorPairs   = attribute.Key("audit.pairs.impostor")
	AttrAdaptiveThresh  = attribute.Key("audit.threshold.adaptive")
	AttrInterpretation  = attribute.Key("audit.interpretation")
	AttrScoreBaseline   = attribute.Key("audit.score.baseline")
	AttrScoreMitigated  = attribute.Key("audit.score.mitigated")
	AttrImagePath       = attribute.Key("embed.image")
	AttrEmbedPreprocess = attribute.Key("embed.preprocessing")
	AttrEmbedCacheHit   = attribute.Key("embed.cache_hit")
	AttrEmbedBackend    = attribute.Key("embed.backend")
	AttrThresholdSource = attribute.Key("compare.threshold_source")
	AttrLatencyMs       = attribute.Key("latency.ms")
)

// AuditAttributes describes the parameters of one audit run.
func AuditAttributes(auditID string, seed int64, threshold float64, preprocessing bool, maxPairs int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAuditID.String(auditID),
		AttrAuditSeed.Int64(seed),
		AttrAuditThreshold.Float64(threshold),
		AttrAuditPreprocess.Bool(preprocessing),
		AttrAuditMaxPairs.Int(maxPairs),
	}
}

// GroupAttributes describes the sample a group report was computed from.
func GroupAttributes(group string, identities, genuine, impostor int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrGroup.String(group),
		AttrIdentities.Int(identities),
		AttrGenuinePairs.Int(genuine),
		AttrImpostorPairs.Int(impostor),
	}
}

// EmbedAttributes describes one provider call. backend is omitted when
// empty.
func EmbedAttributes(imagePath string, preprocessing bool, backend string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrImagePath.String(imagePath),
		AttrEmbedPreprocess.Bool(preprocessing),
	}
	if backend != "" {
		attrs = append(attrs, AttrEmbedBackend.String(backend))
	}
	return attrs
}

// LookupAttributes describes one embedding cache lookup.
func LookupAttributes(cacheHit bool, elapsed time.Duration) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEmbedCacheHit.Bool(cacheHit),
		AttrLatencyMs.Float64(float64(elapsed.Microseconds()) / 1000),
	}
}

func ScoreAttributes(baseline, mitigated int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrScoreBaseline.Int(baseline),
		AttrScoreMitigated.Int(mitigated),
	}
}
