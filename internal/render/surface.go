package render

import (
	"fmt"
	"io"
	"sync"
)

// Surface is the shared mutable render target. It is the one truly shared
// resource in the system: callers must hold the render lock across any
// Apply or Reset.
type Surface interface {
	// Apply replaces the surface content for the given region key.
	Apply(region, fragment string) error

	// Reset clears the surface.
	Reset() error
}

// WriterSurface is the reference surface: each Apply writes the fragment to
// an io.Writer (a terminal in the demo commands, a buffer in tests) and
// remembers the latest fragment per region for diagnostics.
type WriterSurface struct {
	mu      sync.Mutex
	w       io.Writer
	regions map[string]string
}

// NewWriterSurface creates a surface writing to w.
func NewWriterSurface(w io.Writer) *WriterSurface {
	return &WriterSurface{w: w, regions: make(map[string]string)}
}

// Apply writes the fragment and records it as the region's current content.
func (s *WriterSurface) Apply(region, fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions[region] = fragment
	if _, err := fmt.Fprintln(s.w, fragment); err != nil {
		return fmt.Errorf("apply %s: %w", region, err)
	}
	return nil
}

// Reset drops all recorded regions.
func (s *WriterSurface) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = make(map[string]string)
	return nil
}

// Region returns the last fragment applied for a region. Diagnostic only.
func (s *WriterSurface) Region(region string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.regions[region]
	return f, ok
}
