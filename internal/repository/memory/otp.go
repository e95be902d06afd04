package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

const defaultMaxOTPAttempts = 5

type otpRecord struct {
	codeHash  string
	attempts  int
	expiresAt time.Time
}

// OTPStore keeps hashed one-time codes in memory.
type OTPStore struct {
	mu          sync.Mutex
	records     map[string]*otpRecord
	maxAttempts int
	now         func() time.Time
}

// NewOTPStore returns an empty store. maxAttempts <= 0 selects the default.
func NewOTPStore(maxAttempts int) *OTPStore {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxOTPAttempts
	}
	return &OTPStore{records: make(map[string]*otpRecord), maxAttempts: maxAttempts, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *OTPStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *OTPStore) Save(_ context.Context, purpose, identifier, codeHash string, ttl time.Duration) error {
	key, err := otpKey(purpose, identifier)
	if err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(codeHash) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	s.mu.Lock()
	s.records[key] = &otpRecord{codeHash: codeHash, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Consume(_ context.Context, purpose, identifier, codeHash string) (bool, error) {
	key, err := otpKey(purpose, identifier)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(record.expiresAt) {
		delete(s.records, key)
		return false, nil
	}
	if record.codeHash == codeHash {
		delete(s.records, key)
		return true, nil
	}

	record.attempts++
	if record.attempts >= s.maxAttempts {
		delete(s.records, key)
	}
	return false, nil
}

// Sweep removes expired codes.
func (s *OTPStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if !now.Before(record.expiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

func otpKey(purpose, identifier string) (string, error) {
	purpose = strings.TrimSpace(purpose)
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if purpose == "" || identifier == "" {
		return "", errors.New("purpose and identifier are required")
	}
	return purpose + ":" + identifier, nil
}

var _ port.OTPStore = (*OTPStore)(nil)
