package client

import "context"

// RequestIDHeader carries the request id to the backend
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// ContextWithRequestID attaches a request id to ctx
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id attached to ctx, if any
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
