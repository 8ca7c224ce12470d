package ports

import (
	"context"
	"io"
)

type outputKey struct{}

// ContextWithOutput returns a context carrying the writer that transforms
// stream diagnostics to while building a target.
func ContextWithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// OutputFromContext returns the writer stored by ContextWithOutput, or
// io.Discard when there is none.
func OutputFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}
