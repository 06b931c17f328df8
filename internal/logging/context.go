package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type archiveCtxKey struct{}
type modeCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := ArchiveIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("archive.id", id))
	}
	if mode := ModeFromContext(ctx); mode != "" {
		fields = append(fields, zap.String("request.mode", mode))
	}
	return fields
}

// WithRequestID tags the context with the inbound request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithArchiveID tags the context with the archive entry being served.
func WithArchiveID(ctx context.Context, archiveID string) context.Context {
	if archiveID == "" {
		return ctx
	}
	return context.WithValue(ctx, archiveCtxKey{}, archiveID)
}

// ArchiveIDFromContext extracts the archive entry ID from context.
func ArchiveIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(archiveCtxKey{}).(string)
	return id
}

// WithMode tags the context with the generation mode (powerful, own_system).
func WithMode(ctx context.Context, mode string) context.Context {
	if mode == "" {
		return ctx
	}
	return context.WithValue(ctx, modeCtxKey{}, mode)
}

// ModeFromContext extracts the generation mode from context.
func ModeFromContext(ctx context.Context) string {
	mode, _ := ctx.Value(modeCtxKey{}).(string)
	return mode
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
