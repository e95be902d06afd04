package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

// RevocationRepository marks access-token JTIs revoked until the token would have expired.
type RevocationRepository struct {
	client *red.Client
	prefix string
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	return &RevocationRepository{client: client, prefix: prefixed(strings.TrimSpace(keyPrefix), "revoked")}
}

// MarkRevoked stores the JTI with the revocation reason. The key expires with the token.
func (r *RevocationRepository) MarkRevoked(ctx context.Context, jti string, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key, err := r.key(jti)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether the JTI has been revoked along with the stored reason.
func (r *RevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, string, error) {
	key, err := r.key(jti)
	if err != nil {
		return false, "", err
	}

	value, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, red.Nil):
		return false, "", nil
	case err != nil:
		return false, "", fmt.Errorf("redis get revoked jti: %w", err)
	}
	return true, value, nil
}

func (r *RevocationRepository) key(jti string) (string, error) {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return "", errors.New("jti must not be empty")
	}
	return r.prefix + ":" + trimmed, nil
}

var _ port.RevocationStore = (*RevocationRepository)(nil)
