package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	sessionIDKey contextKey = "session_id"
	trialIDKey   contextKey = "trial_id"
	trialNameKey contextKey = "trial_name"
)

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the batch run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSessionID annotates context with the session being processed.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTrial annotates context with the trial identifier and name.
func WithTrial(ctx context.Context, id, name string) context.Context {
	if id != "" {
		ctx = context.WithValue(ctx, trialIDKey, id)
	}
	if name != "" {
		ctx = context.WithValue(ctx, trialNameKey, name)
	}
	return ctx
}

// TrialFromContext returns the trial identifier and name if present.
func TrialFromContext(ctx context.Context) (id, name string, ok bool) {
	id, _ = ctx.Value(trialIDKey).(string)
	name, _ = ctx.Value(trialNameKey).(string)
	return id, name, id != "" || name != ""
}
