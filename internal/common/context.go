package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyScanID    contextKey = "scan_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithScanID adds a scan ID to the context
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, ContextKeyScanID, scanID)
}

// ScanIDFromContext extracts the scan ID from context
func ScanIDFromContext(ctx context.Context) string {
	if scanID, ok := ctx.Value(ContextKeyScanID).(string); ok {
		return scanID
	}
	return ""
}

// LoggerFrom decorates logger with the request and scan IDs carried by ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if id := ScanIDFromContext(ctx); id != "" {
		logger = logger.With("scan_id", id)
	}
	return logger
}
