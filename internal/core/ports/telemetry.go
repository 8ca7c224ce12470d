package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// AttrCached is the span attribute set on targets served from the output cache.
const AttrCached = "bundler.cached"

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals the targets planned for a generation, in build order,
	// with the targets each one waits for.
	EmitPlan(ctx context.Context, targets []string, deps map[string][]string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Internal marks spans that are not shown to the user.
	Internal bool
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithInternal hides the span from progress renderers.
func WithInternal() SpanOption {
	return func(c *SpanConfig) {
		c.Internal = true
	}
}
