package port

import (
	"context"
	"time"
)

// RevocationStore records revoked token identifiers until the token would have expired.
type RevocationStore interface {
	MarkRevoked(ctx context.Context, jti string, reason string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, string, error)
}
