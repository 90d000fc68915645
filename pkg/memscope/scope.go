package memscope

import (
	"fmt"
	"sync"
)

// Stats tracks allocation counters for a single scope. Stats are not
// inherited from children; call Stats on a specific node to see just its
// own bookkeeping.
type Stats struct {
	Allocs    int64
	Frees     int64
	Live      int64
	BytesUsed int64
}

// Releaser is implemented by values registered with Track that own a
// resource (an open file, a heap buffer page store, a backend connection)
// which must be released when the owning scope is destroyed.
type Releaser interface {
	Release() error
}

// Scope is a node in the memory-scope tree. The zero value is not usable;
// construct a root with New.
type Scope struct {
	name   string
	parent *Scope

	mu       sync.Mutex
	children []*Scope
	tracked  []Releaser
	stats    Stats
	closed   bool
}

// New creates a root scope. Root scopes are typically one per long-lived
// owner: a transaction, or the engine's shared "engine" scope.
func New(name string) *Scope {
	return &Scope{name: name}
}

// Child creates a named child scope. The child's lifetime is bounded by the
// parent: destroying the parent destroys the child even if the caller never
// calls Destroy on it directly.
func (s *Scope) Child(name string) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Scope{name: name, parent: s}
	s.children = append(s.children, child)
	return child
}

// Name returns the scope's name, primarily for diagnostics and logging.
func (s *Scope) Name() string {
	return s.name
}

// Track registers a Releaser to be released when this scope is destroyed.
// Track is how the scope stands in for the source arena's "free on scope
// exit" guarantee for values that wrap an external resource (a page store,
// an open backend connection) rather than plain bytes.
func (s *Scope) Track(r Releaser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memscope: scope %q is closed", s.name)
	}
	s.tracked = append(s.tracked, r)
	s.stats.Allocs++
	s.stats.Live++
	return nil
}

// Account records that size bytes were allocated against this scope's
// bookkeeping. It does not itself allocate memory — Go's allocator does
// that — this exists so callers (heap buffers, tuple payload builders) can
// report usage the same way the source's stats counters do.
func (s *Scope) Account(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BytesUsed += size
}

// Stats returns a snapshot of this scope's own counters (not its children's).
func (s *Scope) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Destroy recursively destroys all descendant scopes depth-first, releasing
// every tracked Releaser. Destroy is idempotent; destroying an
// already-destroyed scope is a no-op. Errors from individual Releasers are
// collected rather than aborting the teardown, so one stuck resource never
// leaks the rest; the returned error gives their count and the text of the
// first one only.
func (s *Scope) Destroy() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	children := s.children
	s.children = nil
	tracked := s.tracked
	s.tracked = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range children {
		if err := c.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(tracked) - 1; i >= 0; i-- {
		if err := tracked[i].Release(); err != nil {
			errs = append(errs, err)
		} else {
			s.mu.Lock()
			s.stats.Frees++
			s.stats.Live--
			s.mu.Unlock()
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("memscope: %d error(s) destroying %q: %v", len(errs), s.name, errs[0])
}

// Closed reports whether Destroy has already run on this scope.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
