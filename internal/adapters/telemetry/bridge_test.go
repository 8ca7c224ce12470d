package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/bundler/internal/adapters/telemetry"
	"go.trai.ch/bundler/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestBridge_OnStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	mockRenderer.EXPECT().OnTargetStart(gomock.Any(), "", "main.js", gomock.Any()).Times(1)

	tp := sdktrace.NewTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "main.js")
	defer span.End()

	rwSpan, ok := span.(sdktrace.ReadWriteSpan)
	require.True(t, ok)
	// The SDK hands OnStart the parent context, not the one carrying the span.
	bridge.OnStart(context.Background(), rwSpan)
}

func TestBridge_RegisteredProcessorReportsRootWithoutParent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	var rootID string
	gomock.InOrder(
		mockRenderer.EXPECT().OnTargetStart(gomock.Any(), "", "main.js", gomock.Any()).
			Do(func(id, _, _ string, _ time.Time) { rootID = id }),
		mockRenderer.EXPECT().OnTargetComplete(gomock.Any(), gomock.Any(), false, nil).
			Do(func(id string, _ time.Time, _ bool, _ error) { assert.Equal(t, rootID, id) }),
	)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	_, span := tp.Tracer("test").Start(context.Background(), "main.js")
	span.End()
}

func TestBridge_OnStartPassesParent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("test")
	parentCtx, parent := tracer.Start(context.Background(), "generation")
	defer parent.End()
	_, child := tracer.Start(parentCtx, "main.js")
	defer child.End()

	mockRenderer.EXPECT().
		OnTargetStart(child.SpanContext().SpanID().String(), parent.SpanContext().SpanID().String(), "main.js", gomock.Any()).
		Times(1)

	rwSpan, ok := child.(sdktrace.ReadWriteSpan)
	require.True(t, ok)
	bridge.OnStart(parentCtx, rwSpan)
}

func TestBridge_SkipsInternalSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "hydrate",
		trace.WithAttributes(attribute.Bool(telemetry.AttrInternal, true)))
	span.End()

	rwSpan, ok := span.(sdktrace.ReadWriteSpan)
	require.True(t, ok)
	bridge.OnStart(ctx, rwSpan)
	bridge.OnEnd(rwSpan)
}

func TestBridge_OnStartWithNilRenderer(t *testing.T) {
	bridge := telemetry.NewBridge(nil)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "main.js")
	defer span.End()

	rwSpan, ok := span.(sdktrace.ReadWriteSpan)
	require.True(t, ok)
	assert.NotPanics(t, func() { bridge.OnStart(ctx, rwSpan) })
}

func TestBridge_OnEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	mockRenderer.EXPECT().OnTargetComplete(gomock.Any(), gomock.Any(), false, nil).Times(1)

	tp := sdktrace.NewTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "main.js")
	span.End()

	roSpan, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	bridge.OnEnd(roSpan)
}

func TestBridge_OnEndCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	mockRenderer.EXPECT().OnTargetComplete(gomock.Any(), gomock.Any(), true, nil).Times(1)

	tp := sdktrace.NewTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "main.js")
	span.SetAttributes(attribute.Bool(telemetry.AttrCached, true))
	span.End()

	roSpan, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	bridge.OnEnd(roSpan)
}

func TestBridge_OnEndWithError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)
	bridge := telemetry.NewBridge(mockRenderer)

	var got error
	mockRenderer.EXPECT().OnTargetComplete(gomock.Any(), gomock.Any(), false, gomock.Any()).
		Do(func(_ string, _ time.Time, _ bool, err error) { got = err }).
		Times(1)

	tp := sdktrace.NewTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "main.js")
	span.SetStatus(codes.Error, "unexpected token")
	span.End()

	roSpan, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	bridge.OnEnd(roSpan)

	require.Error(t, got)
	assert.Equal(t, "unexpected token", got.Error())
}

func TestBridge_ForceFlushAndShutdown(t *testing.T) {
	bridge := telemetry.NewBridge(mocks.NewMockRenderer(gomock.NewController(t)))

	assert.NoError(t, bridge.ForceFlush(context.Background()))
	assert.NoError(t, bridge.Shutdown(context.Background()))
}
