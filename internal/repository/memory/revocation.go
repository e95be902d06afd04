package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

type revocation struct {
	reason    string
	expiresAt time.Time
}

// RevocationStore holds revoked JTIs until their tokens expire.
type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocation
	now     func() time.Time
}

// NewRevocationStore returns an empty store using the system clock.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{entries: make(map[string]revocation), now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *RevocationStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *RevocationStore) MarkRevoked(_ context.Context, jti string, reason string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return errors.New("jti must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	s.mu.Lock()
	s.entries[jti] = revocation{reason: reason, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, jti string) (bool, string, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, "", errors.New("jti must not be empty")
	}

	s.mu.RLock()
	entry, ok := s.entries[jti]
	s.mu.RUnlock()
	if !ok || !s.now().Before(entry.expiresAt) {
		return false, "", nil
	}
	return true, entry.reason, nil
}

// Sweep removes revocations whose tokens have expired.
func (s *RevocationStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jti, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, jti)
			removed++
		}
	}
	return removed
}

var _ port.RevocationStore = (*RevocationStore)(nil)
