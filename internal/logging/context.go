package logging

import (
	"context"
	"log/slog"

	"opencap/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies the batch run a log line belongs to.
	FieldRunID = "run_id"
	// FieldSessionID identifies the OpenCap session being processed.
	FieldSessionID = "session_id"
	FieldTrialID   = "trial_id"
	FieldTrialName = "trial_name"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if id, name, ok := services.TrialFromContext(ctx); ok {
		if id != "" {
			fields = append(fields, slog.String(FieldTrialID, id))
		}
		if name != "" {
			fields = append(fields, slog.String(FieldTrialName, name))
		}
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
