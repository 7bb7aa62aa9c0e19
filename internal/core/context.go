package core

import "context"

// Context key for passing the invocation ID to lower layers.
type contextKey string

const invocationIDContextKey contextKey = "invocationID"

func ContextWithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDContextKey, id)
}

// InvocationIDFromContext returns the invocation ID stored in ctx, or "".
func InvocationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(invocationIDContextKey).(string); ok {
		return id
	}
	return ""
}
