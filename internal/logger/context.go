package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithSearchID adds a search run ID to the context.
func WithSearchID(ctx context.Context, searchID string) context.Context {
	return context.WithValue(ctx, ContextKeySearchID, searchID)
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// GenerateRequestID generates a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}
