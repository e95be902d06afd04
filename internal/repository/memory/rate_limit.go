// Package memory provides process-local stores used when Redis is not configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

// RateLimitStore keeps sliding windows per identifier behind a single mutex.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	attempts []time.Time
	span     time.Duration
}

// NewRateLimitStore returns an empty store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]*window)}
}

// Attempt prunes attempts older than the window, then records one if under limit.
func (s *RateLimitStore) Attempt(_ context.Context, identifier string, limit int, span time.Duration, at time.Time) (port.RateLimitResult, error) {
	if span <= 0 {
		return port.RateLimitResult{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.RateLimitResult{}, errors.New("limit must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identifier]
	if !ok {
		w = &window{}
		s.windows[identifier] = w
	}
	w.span = span
	w.prune(at.Add(-span))

	result := port.RateLimitResult{}
	if len(w.attempts) < limit {
		w.attempts = append(w.attempts, at)
		result.Allowed = true
	}
	result.Count = len(w.attempts)
	if len(w.attempts) > 0 {
		result.Oldest = w.attempts[0]
		result.HasOldest = true
	}
	return result, nil
}

// Sweep drops windows whose attempts have all aged out as of now.
func (s *RateLimitStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		w.prune(now.Add(-w.span))
		if len(w.attempts) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// prune removes attempts at or before threshold. Attempts are kept in arrival
// order, which is also time order for a single clock.
func (w *window) prune(threshold time.Time) {
	idx := 0
	for idx < len(w.attempts) && !w.attempts[idx].After(threshold) {
		idx++
	}
	if idx > 0 {
		w.attempts = append(w.attempts[:0], w.attempts[idx:]...)
	}
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
