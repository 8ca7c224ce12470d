package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/bundler/internal/core/ports"
)

// Span attributes interpreted by the Bridge.
const (
	AttrInternal = "bundler.internal"
	AttrCached   = ports.AttrCached
)

// OTelTracer implements ports.Tracer on OpenTelemetry.
// With a renderer attached, span output and plans are streamed to it.
type OTelTracer struct {
	name string

	mu       sync.RWMutex
	tracer   trace.Tracer
	renderer ports.Renderer
}

// NewOTelTracer creates a tracer from the global tracer provider.
func NewOTelTracer(name string) *OTelTracer {
	return &OTelTracer{name: name, tracer: otel.Tracer(name)}
}

// NewOTelTracerFrom wraps an existing OpenTelemetry tracer.
func NewOTelTracerFrom(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// WithRenderer streams span output and plans to r.
func (t *OTelTracer) WithRenderer(r ports.Renderer) *OTelTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer = r
	return t
}

// WithProvider starts subsequent spans from tp.
func (t *OTelTracer) WithProvider(tp trace.TracerProvider) *OTelTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracer = tp.Tracer(t.name)
	return t
}

// SetupProvider registers a tracer provider whose spans are forwarded to the
// bridge and returns it so that the caller can shut it down.
func SetupProvider(bridge *Bridge) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	otel.SetTracerProvider(tp)
	return tp
}

// Start creates a span.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var startOpts []trace.SpanStartOption
	if cfg.Internal {
		startOpts = append(startOpts, trace.WithAttributes(attribute.Bool(AttrInternal, true)))
	}
	t.mu.RLock()
	tracer, r := t.tracer, t.renderer
	t.mu.RUnlock()

	ctx, span := tracer.Start(ctx, name, startOpts...)

	s := &OTelSpan{span: span}
	if r != nil && !cfg.Internal {
		spanID := span.SpanContext().SpanID().String()
		s.batcher = NewBatchProcessor(0, 0, func(data []byte) {
			r.OnTargetLog(spanID, data)
		})
	}
	return ctx, s
}

// EmitPlan records the plan on the current span and hands it to the renderer.
func (t *OTelTracer) EmitPlan(ctx context.Context, targets []string, deps map[string][]string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("plan_emitted", trace.WithAttributes(
			attribute.StringSlice("targets", targets),
		))
	}

	t.mu.RLock()
	r := t.renderer
	t.mu.RUnlock()
	if r != nil {
		r.OnPlanEmit(targets, deps)
	}
}

// OTelSpan implements ports.Span on an OpenTelemetry span.
type OTelSpan struct {
	span    trace.Span
	batcher *BatchProcessor
}

// SpanID returns the hex identifier reported to renderers.
func (s *OTelSpan) SpanID() string {
	return s.span.SpanContext().SpanID().String()
}

// End flushes buffered output and completes the span.
func (s *OTelSpan) End() {
	if s.batcher != nil {
		_ = s.batcher.Close()
	}
	s.span.End()
}

// RecordError marks the span as failed.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	var kv attribute.KeyValue
	switch v := value.(type) {
	case string:
		kv = attribute.String(key, v)
	case bool:
		kv = attribute.Bool(key, v)
	case int:
		kv = attribute.Int(key, v)
	case int64:
		kv = attribute.Int64(key, v)
	case float64:
		kv = attribute.Float64(key, v)
	case []string:
		kv = attribute.StringSlice(key, v)
	default:
		kv = attribute.String(key, fmt.Sprint(v))
	}
	s.span.SetAttributes(kv)
}

// Write forwards output to the renderer, or records it as a span event when
// no renderer is attached.
func (s *OTelSpan) Write(p []byte) (int, error) {
	if s.batcher != nil {
		return s.batcher.Write(p)
	}
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	return len(p), nil
}
