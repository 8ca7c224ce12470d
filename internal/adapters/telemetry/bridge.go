package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/bundler/internal/core/ports"
)

// Bridge implements sdktrace.SpanProcessor and reports target spans to a Renderer.
// Spans started with ports.WithInternal are not reported.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a Bridge reporting to renderer.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() || boolAttr(s.Attributes(), AttrInternal) {
		return
	}

	var parentID string
	if p := trace.SpanFromContext(parent).SpanContext(); p.IsValid() {
		parentID = p.SpanID().String()
	}
	b.renderer.OnTargetStart(s.SpanContext().SpanID().String(), parentID, s.Name(), s.StartTime())
}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() {
		return
	}
	attrs := s.Attributes()
	if boolAttr(attrs, AttrInternal) {
		return
	}

	var err error
	if status := s.Status(); status.Code == codes.Error {
		desc := status.Description
		if desc == "" {
			desc = "target failed"
		}
		err = errors.New(desc)
	}
	b.renderer.OnTargetComplete(s.SpanContext().SpanID().String(), s.EndTime(), boolAttr(attrs, AttrCached), err)
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

func boolAttr(attrs []attribute.KeyValue, key attribute.Key) bool {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value.AsBool()
		}
	}
	return false
}
