// Package lifecycle tracks the temporary files created for a request and
// removes all of them when the request terminates.
package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Kind labels what an artifact holds.
type Kind string

// Artifact kinds
const (
	KindUpload    Kind = "upload"
	KindReference Kind = "reference"
	KindStaging   Kind = "staging"
	KindOutput    Kind = "output"
)

// Artifact is one filesystem-backed temporary object owned by a request.
type Artifact struct {
	Path      string
	Kind      Kind
	CreatedAt time.Time
	RequestID string

	removed atomic.Bool
}

// Removed reports whether the artifact has been released. Safe to call
// while ReleaseAll runs on another goroutine.
func (a *Artifact) Removed() bool {
	return a.removed.Load()
}

// Manager is the process-wide entry point. It holds only read-only state and
// is safe for concurrent use; all per-request state lives in a Scope.
type Manager struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	onFail func(n int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithCleanupFailureHook registers a callback invoked with the number of
// artifacts that could not be removed during a release.
func WithCleanupFailureHook(fn func(n int)) Option {
	return func(m *Manager) { m.onFail = fn }
}

// NewManager creates a manager rooted at the given scratch directory.
// The directory is created if it does not exist.
func NewManager(dir string, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	m := &Manager{
		dir:    dir,
		logger: logger.Named("lifecycle"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the scratch directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Acquire opens the artifact scope of one request.
// The caller must defer Scope.ReleaseAll immediately.
func (m *Manager) Acquire(requestID string) *Scope {
	return &Scope{manager: m, requestID: requestID}
}

// Scope holds the artifacts of a single request.
type Scope struct {
	manager   *Manager
	requestID string

	seq       atomic.Uint64
	mu        sync.Mutex
	artifacts []*Artifact
	released  bool
}

// Register allocates a unique scratch path for a new artifact and records it
// before any data is written. The file itself is not created.
func (s *Scope) Register(kind Kind, originalName string) (*Artifact, error) {
	now := s.manager.now()
	name := fmt.Sprintf("%s_%s_%d_%d", s.requestID, kind, now.UnixNano(), s.seq.Add(1))
	if originalName != "" {
		name += "_" + shortName(SanitizeFilename(filepath.Base(originalName)))
	}
	return s.add(&Artifact{
		Path:      filepath.Join(s.manager.dir, name),
		Kind:      kind,
		CreatedAt: now,
		RequestID: s.requestID,
	})
}

// Track registers a path produced by a collaborator so it is removed with the rest.
// Tracking a path that is already registered returns the existing artifact.
func (s *Scope) Track(kind Kind, path string) (*Artifact, error) {
	s.mu.Lock()
	for _, a := range s.artifacts {
		if a.Path == path {
			s.mu.Unlock()
			return a, nil
		}
	}
	s.mu.Unlock()

	return s.add(&Artifact{
		Path:      path,
		Kind:      kind,
		CreatedAt: s.manager.now(),
		RequestID: s.requestID,
	})
}

func (s *Scope) add(a *Artifact) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, &ReleasedError{RequestID: s.requestID}
	}
	s.artifacts = append(s.artifacts, a)
	s.manager.logger.Debug("artifact registered",
		zap.String("request_id", s.requestID),
		zap.String("kind", string(a.Kind)),
		zap.String("path", a.Path))
	return a, nil
}

// Pending returns the artifacts that have not been removed yet.
func (s *Scope) Pending() []*Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Artifact
	for _, a := range s.artifacts {
		if !a.removed.Load() {
			out = append(out, a)
		}
	}
	return out
}

// ReleaseAll removes every registered artifact. Individual failures are logged
// and aggregated into a *CleanupError; they never stop the remaining removals.
// Calling ReleaseAll more than once is a no-op.
func (s *Scope) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	var errs error
	removed := 0
	for _, a := range s.artifacts {
		if a.removed.Load() {
			continue
		}
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.manager.logger.Warn("failed to remove artifact",
				zap.String("request_id", s.requestID),
				zap.String("kind", string(a.Kind)),
				zap.String("path", a.Path),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", a.Kind, err))
			continue
		}
		a.removed.Store(true)
		removed++
	}

	s.manager.logger.Debug("artifacts released",
		zap.String("request_id", s.requestID),
		zap.Int("removed", removed),
		zap.Int("registered", len(s.artifacts)))

	if errs != nil {
		if s.manager.onFail != nil {
			s.manager.onFail(len(multierr.Errors(errs)))
		}
		return &CleanupError{RequestID: s.requestID, Cause: errs}
	}
	return nil
}
