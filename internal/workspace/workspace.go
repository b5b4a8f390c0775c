package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"opencap/internal/services"
)

// LockFileName is the per-session lock file created by Lock.
const LockFileName = ".opencap.lock"

// ErrLocked is returned when another process holds a session directory.
var ErrLocked = errors.New("session directory locked")

// Layout computes where the processing command writes results for a session.
type Layout struct {
	DataDir string
}

// New returns a layout rooted at dataDir.
func New(dataDir string) Layout {
	return Layout{DataDir: dataDir}
}

// SessionDir is <data_dir>/Data/<session>.
func (l Layout) SessionDir(sessionID string) string {
	return filepath.Join(l.DataDir, "Data", sessionID)
}

func (l Layout) MarkerDataPath(sessionID, trialName string) string {
	return filepath.Join(l.SessionDir(sessionID), "MarkerData", trialName+".trc")
}

func (l Layout) KinematicsPath(sessionID, trialName string) string {
	return filepath.Join(l.SessionDir(sessionID), "OpenSimData", "Kinematics", trialName+".mot")
}

func (l Layout) ModelDir(sessionID string) string {
	return filepath.Join(l.SessionDir(sessionID), "OpenSimData", "Model")
}

// VisualizerPath is the visualization transform file for a trial.
func (l Layout) VisualizerPath(sessionID, trialName string) string {
	return filepath.Join(l.SessionDir(sessionID), "VisualizerJsons", trialName, trialName+".json")
}

// ModelPath returns the scaled model produced by the static trial. When
// several models exist the lexically first is used.
func (l Layout) ModelPath(sessionID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(l.ModelDir(sessionID), "*.osim"))
	if err != nil {
		return "", fmt.Errorf("glob model dir: %w", err)
	}
	if len(matches) == 0 {
		return "", services.Wrap(services.ErrNotFound, "workspace", "model path",
			"no .osim model in "+l.ModelDir(sessionID), nil)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Lock takes an exclusive lock on the session directory, creating it first.
// It fails with ErrLocked when another process holds the lock.
func (l Layout) Lock(sessionID string) (*SessionLock, error) {
	if err := validSessionID(sessionID); err != nil {
		return nil, err
	}
	dir := l.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &SessionLock{lock: lock, path: path}, nil
}

// RemoveSession deletes the session directory and everything under it.
func (l Layout) RemoveSession(sessionID string) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	if err := os.RemoveAll(l.SessionDir(sessionID)); err != nil {
		return fmt.Errorf("remove session directory: %w", err)
	}
	return nil
}

// SessionLock is a held session directory lock.
type SessionLock struct {
	lock *flock.Flock
	path string
}

// Path returns the lock file location.
func (s *SessionLock) Path() string {
	return s.path
}

// Unlock releases the lock. It is safe to call more than once.
func (s *SessionLock) Unlock() error {
	if s == nil || s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", s.path, err)
	}
	return nil
}

func validSessionID(sessionID string) error {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" || trimmed != sessionID || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return services.Wrap(services.ErrValidation, "workspace", "session id", fmt.Sprintf("invalid session id %q", sessionID), nil)
	}
	return nil
}
