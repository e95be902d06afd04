package port

import (
	"context"
	"time"
)

// OTPStore keeps short-lived one-time code hashes keyed by purpose and identifier.
type OTPStore interface {
	Save(ctx context.Context, purpose, identifier, codeHash string, ttl time.Duration) error
	// Consume deletes the record on a match. Mismatches count against the record
	// and exhaust it after too many attempts.
	Consume(ctx context.Context, purpose, identifier, codeHash string) (bool, error)
}
