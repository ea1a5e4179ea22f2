package services

import "context"

type contextKey string

const (
	discKey      contextKey = "disc"
	stageKey     contextKey = "stage"
	titleKey     contextKey = "title"
	requestIDKey contextKey = "request_id"
)

// WithDisc annotates context with the disc label currently being processed.
func WithDisc(ctx context.Context, label string) context.Context {
	if label == "" {
		return ctx
	}
	return context.WithValue(ctx, discKey, label)
}

// DiscFromContext returns the disc label if present.
func DiscFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(discKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTitle annotates context with the disc title index being worked on.
func WithTitle(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, titleKey, index)
}

// TitleFromContext extracts the disc title index if present.
func TitleFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(titleKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
