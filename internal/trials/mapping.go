package trials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opencap/internal/opencapapi"
	"opencap/internal/services"
)

// ErrTrialNotFound reports a trial name absent from a session's mapping.
var ErrTrialNotFound = errors.New("trial not found")

// LookupError is returned when a trial name cannot be resolved. It matches
// both ErrTrialNotFound and services.ErrConfiguration.
type LookupError struct {
	SessionID string
	Name      string
}

func (e *LookupError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("trial %q not found", e.Name)
	}
	return fmt.Sprintf("trial %q not found in session %s", e.Name, e.SessionID)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrTrialNotFound || target == services.ErrConfiguration
}

// Entry is the resolved identity of a named trial.
type Entry struct {
	ID   string
	Date time.Time
}

// Mapping is a snapshot of trial name to identity for one session.
type Mapping struct {
	sessionID string
	entries   map[string]Entry
}

// NewMapping builds a mapping over list. A name recorded more than once
// resolves to its last occurrence.
func NewMapping(sessionID string, list []Trial) Mapping {
	entries := make(map[string]Entry, len(list))
	for _, t := range list {
		entries[t.Name] = Entry{ID: t.ID, Date: t.CreatedAt}
	}
	return Mapping{sessionID: sessionID, entries: entries}
}

// Lookup returns the entry for name or a *LookupError.
func (m Mapping) Lookup(name string) (Entry, error) {
	entry, ok := m.entries[name]
	if !ok {
		return Entry{}, &LookupError{SessionID: m.sessionID, Name: name}
	}
	return entry, nil
}

// SessionSource fetches a session record from the remote store.
type SessionSource interface {
	Session(ctx context.Context, sessionID string) (*opencapapi.Session, error)
}

// Resolver reads a session's trial list on every call. Nothing is cached.
type Resolver struct {
	source SessionSource
}

// NewResolver wraps source.
func NewResolver(source SessionSource) *Resolver {
	return &Resolver{source: source}
}

// Trials returns the session's trials in remote order.
func (r *Resolver) Trials(ctx context.Context, sessionID string) ([]Trial, error) {
	session, err := r.source.Session(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session %s: %w", sessionID, err)
	}
	return FromAPI(session.Trials), nil
}

// Resolve returns the name to identity mapping for sessionID.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (Mapping, error) {
	list, err := r.Trials(ctx, sessionID)
	if err != nil {
		return Mapping{}, err
	}
	return NewMapping(sessionID, list), nil
}
