package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Partial images are written beside their destination as hidden
// ".<image>.<id>.partial" files and only renamed into place once sealed
// and hashed. An interrupted acquisition must never leave one behind
// where it could be mistaken for evidence, so every open partial is
// tracked here until it is published or discarded. SweepPartials covers
// exits that bypass the engine's own abort path (signals, panics in the
// CLI layer).
var openPartials = &partialSet{}

type partialSet struct {
	mu sync.Mutex
	// partial path -> destination image it stands in for
	images map[string]string
}

func (s *partialSet) add(path, final string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		s.images = make(map[string]string)
	}
	s.images[path] = final
}

func (s *partialSet) drop(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, path)
}

// take empties the set and returns what it held.
func (s *partialSet) take() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := s.images
	s.images = nil
	return images
}

// isPartialName reports whether path has the hidden partial-image form.
// The sweep removes nothing else.
func isPartialName(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".partial")
}

// RegisterPartial records an open partial image for the destination final.
func RegisterPartial(path, final string) {
	openPartials.add(path, final)
}

// DeregisterPartial forgets a partial image once it has been published or
// discarded.
func DeregisterPartial(path string) {
	openPartials.drop(path)
}

// SweepPartials removes every partial image still registered and returns
// how many were removed. Each removal is logged with its destination so
// the examiner can tell which acquisition was cut short.
func SweepPartials(logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	removed := 0
	for path, final := range openPartials.take() {
		if !isPartialName(path) {
			logger.Error("refusing to remove non-partial file", "path", path, "destination", final)
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("partial image not removed", "path", path, "destination", final, "error", err)
			}
			continue
		}
		logger.Warn("removed partial image", "path", path, "destination", final)
		removed++
	}
	return removed
}
