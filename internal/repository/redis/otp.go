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

const (
	fieldCode     = "code"
	fieldAttempts = "attempts"

	defaultMaxOTPAttempts = 5
)

// consumeScript deletes the record on a match and burns an attempt otherwise.
// Returns 1 on match, 0 on miss or mismatch.
var consumeScript = red.NewScript(`
local key = KEYS[1]
local code = redis.call('HGET', key, 'code')
if not code then
  return 0
end
if code == ARGV[1] then
  redis.call('DEL', key)
  return 1
end
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
if attempts >= tonumber(ARGV[2]) then
  redis.call('DEL', key)
end
return 0
`)

// OTPRepository persists hashed one-time codes in Redis hashes.
type OTPRepository struct {
	client      *red.Client
	prefix      string
	maxAttempts int
}

// NewOTPRepository constructs a repository. maxAttempts <= 0 selects the default.
func NewOTPRepository(client *red.Client, keyPrefix string, maxAttempts int) *OTPRepository {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxOTPAttempts
	}
	return &OTPRepository{
		client:      client,
		prefix:      prefixed(strings.TrimSpace(keyPrefix), "otp"),
		maxAttempts: maxAttempts,
	}
}

// Save replaces any pending code for the purpose and identifier.
func (r *OTPRepository) Save(ctx context.Context, purpose, identifier, codeHash string, ttl time.Duration) error {
	key, err := r.key(purpose, identifier)
	if err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(codeHash) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:     codeHash,
		fieldAttempts: "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store otp: %w", err)
	}
	return nil
}

// Consume checks codeHash against the pending record, enforcing single use.
func (r *OTPRepository) Consume(ctx context.Context, purpose, identifier, codeHash string) (bool, error) {
	key, err := r.key(purpose, identifier)
	if err != nil {
		return false, err
	}

	matched, err := consumeScript.Run(ctx, r.client, []string{key}, codeHash, r.maxAttempts).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}
	return matched == 1, nil
}

func (r *OTPRepository) key(purpose, identifier string) (string, error) {
	purpose = strings.TrimSpace(purpose)
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if purpose == "" || identifier == "" {
		return "", errors.New("purpose and identifier are required")
	}
	return fmt.Sprintf("%s:%s:%s", r.prefix, purpose, identifier), nil
}

var _ port.OTPStore = (*OTPRepository)(nil)
